// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package progress fans judge.JudgeResult snapshots out to web clients over
// Server-Sent Events, one stream per submission.
package progress

import (
	"encoding/json"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/oj-judge/judged/internal/judge"
)

// Broadcaster publishes judge result snapshots to SSE subscribers keyed by
// submission ID. The judge core only ever calls the plain judge.ProgressFunc
// callback; Broadcaster.Publish is one of that callback's subscribers,
// wired in cmd/judged.
type Broadcaster struct {
	server *sse.Server
	logger *zap.Logger
}

// New creates a Broadcaster. Mount the handler returned by Server on an
// HTTP server.
func New(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := sse.New()
	server.AutoReplay = false
	return &Broadcaster{server: server, logger: logger}
}

// streamName maps a submission ID to its SSE stream name. It does not create
// the stream; EnsureStream does.
func (b *Broadcaster) streamName(submissionID string) string {
	return "submission-" + submissionID
}

// EnsureStream creates the SSE stream for submissionID if it doesn't exist
// yet, so a web client can subscribe before the first Publish call.
func (b *Broadcaster) EnsureStream(submissionID string) {
	name := b.streamName(submissionID)
	if !b.server.StreamExists(name) {
		b.server.CreateStream(name)
	}
}

// Publish ships a judge result snapshot to every subscriber of
// submissionID's stream.
func (b *Broadcaster) Publish(submissionID string, result judge.JudgeResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		b.logger.Warn("failed to marshal judge result for SSE publish",
			zap.String("submission_id", submissionID), zap.Error(err))
		return
	}
	b.EnsureStream(submissionID)
	b.server.Publish(b.streamName(submissionID), &sse.Event{Data: payload})
}

// CloseStream tears down a submission's SSE stream once its judge run is
// complete and no further snapshots will be published.
func (b *Broadcaster) CloseStream(submissionID string) {
	b.server.RemoveStream(b.streamName(submissionID))
}

// Server exposes the underlying SSE server, which implements http.Handler
// directly (mount it at e.g. "/progress" with ?stream=submission-<submissionID>).
func (b *Broadcaster) Server() *sse.Server {
	return b.server
}
