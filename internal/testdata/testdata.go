// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package testdata resolves a problem's test-data package name to a local
// directory, fetching and extracting it from S3 on a cache miss and
// invalidating the cache entry if the directory is touched on disk.
package testdata

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/zip"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// Cache resolves test-data package names to local directories, backed by
// S3 on a miss (§10 internal/testdata).
type Cache struct {
	rootDir    string
	bucket     string
	schemaPath string
	client     *s3.Client
	logger     *zap.Logger
	watcher    *fsnotify.Watcher

	mu    sync.Mutex
	stale map[string]bool
}

// New constructs a Cache rooted at rootDir, fetching misses from bucket.
// schemaPath points at the JSON Schema problem.yaml is validated against.
func New(ctx context.Context, rootDir, bucket, region, schemaPath string, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create test-data root %s: %w", rootDir, err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	c := &Cache{
		rootDir:    rootDir,
		bucket:     bucket,
		schemaPath: schemaPath,
		client:     s3.NewFromConfig(awsCfg),
		logger:     logger,
		watcher:    watcher,
		stale:      make(map[string]bool),
	}
	go c.watchInvalidations()
	return c, nil
}

// Resolve returns the local directory for name, fetching and extracting the
// package from S3 if it isn't already cached.
func (c *Cache) Resolve(ctx context.Context, name string) (string, error) {
	dir := filepath.Join(c.rootDir, name)
	if info, err := os.Stat(dir); err == nil && info.IsDir() && !c.isStale(dir) {
		return dir, nil
	}

	if err := c.fetch(ctx, name, dir); err != nil {
		return "", err
	}
	if err := c.validateProblemYAML(dir); err != nil {
		return "", fmt.Errorf("test-data %s failed schema validation: %w", name, err)
	}

	if err := c.watcher.Add(dir); err != nil {
		c.logger.Warn("failed to watch test-data directory", zap.String("dir", dir), zap.Error(err))
	}
	c.clearStale(dir)
	return dir, nil
}

func (c *Cache) isStale(dir string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale[dir]
}

func (c *Cache) markStale(dir string) {
	c.mu.Lock()
	c.stale[dir] = true
	c.mu.Unlock()
}

func (c *Cache) clearStale(dir string) {
	c.mu.Lock()
	delete(c.stale, dir)
	c.mu.Unlock()
}

func (c *Cache) fetch(ctx context.Context, name, dir string) error {
	key := name + ".zip"
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("fetch test-data package %s: %w", key, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "judged-testdata-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, out.Body); err != nil {
		return fmt.Errorf("download test-data package %s: %w", key, err)
	}

	return extractZip(tmp.Name(), dir)
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", destDir, err)
	}

	for _, f := range r.File {
		path := filepath.Join(destDir, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		src, err := f.Open()
		if err != nil {
			return err
		}
		dst, err := os.Create(path)
		if err != nil {
			src.Close()
			return err
		}
		_, copyErr := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

func (c *Cache) validateProblemYAML(dir string) error {
	manifestPath := filepath.Join(dir, "problem.yaml")
	if _, err := os.Stat(manifestPath); err != nil {
		return fmt.Errorf("missing problem.yaml in %s", dir)
	}

	schemaLoader := gojsonschema.NewReferenceLoader("file://" + c.schemaPath)
	docLoader := gojsonschema.NewReferenceLoader("file://" + manifestPath)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("run schema validation: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("schema violations: %v", result.Errors())
	}
	return nil
}

// watchInvalidations marks a cached directory stale whenever it changes
// underneath us, so the next Resolve call re-fetches it instead of trusting
// the directory that's already on disk.
func (c *Cache) watchInvalidations() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			dir := filepath.Dir(event.Name)
			c.markStale(dir)
			c.logger.Info("test-data directory touched, invalidating cache entry",
				zap.String("path", event.Name), zap.String("op", event.Op.String()))
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("fsnotify watcher error", zap.Error(err))
		}
	}
}

// Close stops the filesystem watcher.
func (c *Cache) Close() error {
	return c.watcher.Close()
}

// PreviewReader reads truncated file previews rooted at one resolved
// test-data directory. It satisfies judge.PreviewReader by duck typing, so
// this package doesn't need to import internal/judge.
type PreviewReader struct {
	dir string
}

// NewPreviewReader builds a PreviewReader rooted at dir, normally the
// directory a prior Cache.Resolve call returned for one problem.
func NewPreviewReader(dir string) *PreviewReader {
	return &PreviewReader{dir: dir}
}

// ReadFileLength reads at most limit bytes of path (relative to the
// problem's test-data directory), or returns "" for a nil path (§4.H).
func (p *PreviewReader) ReadFileLength(ctx context.Context, path *string, limit int) (string, error) {
	if path == nil {
		return "", nil
	}
	f, err := os.Open(filepath.Join(p.dir, *path))
	if err != nil {
		return "", fmt.Errorf("open preview file %s: %w", *path, err)
	}
	defer f.Close()

	buf := make([]byte, limit)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read preview file %s: %w", *path, err)
	}
	return string(buf[:n]), nil
}
