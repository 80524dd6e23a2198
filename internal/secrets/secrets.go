// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package secrets stores the judge daemon's ServerToken in the OS
// credential store. cmd/judged copies the token there from configuration
// at startup; the token stays in the configuration as well.
package secrets

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "judged"

// StoreServerToken saves token under the OS keyring.
func StoreServerToken(token string) error {
	if err := keyring.Set(service, "server_token", token); err != nil {
		return fmt.Errorf("store server token: %w", err)
	}
	return nil
}

// LoadServerToken retrieves the previously stored token, if any.
func LoadServerToken() (string, error) {
	token, err := keyring.Get(service, "server_token")
	if err != nil {
		return "", fmt.Errorf("load server token: %w", err)
	}
	return token, nil
}

// DeleteServerToken removes the stored token.
func DeleteServerToken() error {
	if err := keyring.Delete(service, "server_token"); err != nil {
		return fmt.Errorf("delete server token: %w", err)
	}
	return nil
}
