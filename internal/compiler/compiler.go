// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package compiler implements judge.CompilerService as a local shim: it
// writes a submission's source (and any extra attached files) to a scratch
// directory and invokes the language's compile command as a subprocess,
// capturing stderr under a context timeout instead of a hand-rolled timer.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oj-judge/judged/internal/judge"
	"github.com/oj-judge/judged/internal/tracing"
)

// LanguageSpec describes how one language's source is laid out on disk and
// compiled. Command is a compile invocation; {{src}} and {{out}} are
// replaced with the staged source path and the desired executable path.
// An interpreted language (no Command) compiles to a no-op: the staged
// source file itself becomes the "executable".
type LanguageSpec struct {
	Extension string
	Command   []string
}

// executable is an on-disk compiled program or staged interpreted script.
type executable struct {
	path string
}

func (e *executable) Name() string { return e.path }

// Service is a local judge.CompilerService. It does not sandbox the
// compiler subprocess; a deployment that needs isolation wraps Service or
// replaces it with a container-backed implementation behind the same
// interface.
type Service struct {
	workDir string
	timeout time.Duration
	specs   map[string]LanguageSpec
	tracer  tracing.Tracer
	logger  *zap.Logger
}

// DefaultLanguages is the language table for the reference deployment. A
// production deployment overrides this with its own compiler toolchain paths.
var DefaultLanguages = map[string]LanguageSpec{
	"c": {
		Extension: "c",
		Command:   []string{"gcc", "-O2", "-static", "-o", "{{out}}", "{{src}}"},
	},
	"cpp": {
		Extension: "cpp",
		Command:   []string{"g++", "-O2", "-std=c++20", "-static", "-o", "{{out}}", "{{src}}"},
	},
	"cpp-diag": {
		Extension: "cpp",
		Command:   []string{"g++", "-O0", "-g", "-std=c++20", "-fsanitize=address,undefined", "-o", "{{out}}", "{{src}}"},
	},
	"go": {
		Extension: "go",
		Command:   []string{"go", "build", "-o", "{{out}}", "{{src}}"},
	},
	"python3": {
		Extension: "py",
	},
}

// New constructs a Service rooted at workDir, which must already exist.
func New(workDir string, timeout time.Duration, specs map[string]LanguageSpec, tracer tracing.Tracer, logger *zap.Logger) *Service {
	if specs == nil {
		specs = DefaultLanguages
	}
	if tracer == nil {
		tracer = tracing.NoOpTracer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{workDir: workDir, timeout: timeout, specs: specs, tracer: tracer, logger: logger}
}

// Compile implements judge.CompilerService (§4.H).
func (s *Service) Compile(ctx context.Context, source judge.SourceFile, extras []judge.AttachedFile, priority int) (judge.ExecutableHandle, judge.CompilationResult, error) {
	ctx, span := s.tracer.StartSpan(ctx, "judge.compile")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("language", source.Language)
	span.SetAttribute("priority", priority)

	spec, ok := s.specs[source.Language]
	if !ok {
		return nil, judge.CompilationResult{}, fmt.Errorf("unknown language %q", source.Language)
	}

	dir := filepath.Join(s.workDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, judge.CompilationResult{}, fmt.Errorf("create scratch dir: %w", err)
	}

	srcPath := filepath.Join(dir, "main."+spec.Extension)
	if err := os.WriteFile(srcPath, []byte(source.Source), 0o644); err != nil {
		return nil, judge.CompilationResult{}, fmt.Errorf("write source: %w", err)
	}
	for _, extra := range extras {
		if err := os.WriteFile(filepath.Join(dir, extra.Name), []byte(extra.Content), 0o644); err != nil {
			return nil, judge.CompilationResult{}, fmt.Errorf("write attached file %s: %w", extra.Name, err)
		}
	}

	if len(spec.Command) == 0 {
		// Interpreted language: the staged source is the executable.
		return &executable{path: srcPath}, judge.CompilationResult{Success: true}, nil
	}

	outPath := filepath.Join(dir, "a.out")
	args := make([]string, len(spec.Command))
	for i, a := range spec.Command {
		a = strings.ReplaceAll(a, "{{src}}", srcPath)
		a = strings.ReplaceAll(a, "{{out}}", outPath)
		args[i] = a
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cctx.Err() != nil {
			return nil, judge.CompilationResult{Success: false, Message: "compilation timed out"}, nil
		}
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return nil, judge.CompilationResult{Success: false, Message: msg}, nil
	}

	return &executable{path: outPath}, judge.CompilationResult{Success: true}, nil
}

var _ judge.CompilerService = (*Service)(nil)
var _ judge.ExecutableHandle = (*executable)(nil)
