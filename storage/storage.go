// Package storage provides the persistent slot that holds a single session
// credential (access token, refresh token). A slot is deliberately tiny:
// one value, get/set/clear, pluggable backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Provider is a persistent single-value slot. Get returns the empty string
// (and no error) when the slot is unset.
type Provider interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, value string) error
	Clear(ctx context.Context) error
}

// Kind selects a built-in Provider backend.
type Kind string

const (
	// KindMemory keeps the value in process memory only.
	KindMemory Kind = "memory"

	// KindFile persists the value to a file with 0600 permissions.
	KindFile Kind = "file"
)

// New constructs a Provider for the given kind. A file provider whose
// directory is not writable falls back to memory with a logged warning;
// the fallback decision is made here, once, not rediscovered per call.
func New(kind Kind, path string, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch kind {
	case KindMemory, "":
		return NewMemory(), nil
	case KindFile:
		if path == "" {
			return nil, fmt.Errorf("file storage requires a path")
		}
		if err := probeDir(filepath.Dir(path)); err != nil {
			logger.Warn("file storage unavailable, falling back to memory",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return NewMemory(), nil
		}
		return &fileProvider{path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported storage kind: %s", kind)
	}
}

// NewMemory returns an in-memory Provider.
func NewMemory() Provider {
	return &memoryProvider{}
}

// NewFile returns a file-backed Provider without the fallback probe.
// Use New(KindFile, ...) when graceful degradation is wanted.
func NewFile(path string) Provider {
	return &fileProvider{path: path}
}

type memoryProvider struct {
	mu    sync.RWMutex
	value string
}

func (p *memoryProvider) Get(ctx context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, nil
}

func (p *memoryProvider) Set(ctx context.Context, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = value
	return nil
}

func (p *memoryProvider) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = ""
	return nil
}

// fileProvider persists the slot to a single file. Writes go through a
// temp file and rename so a crash never leaves a half-written token.
type fileProvider struct {
	mu   sync.Mutex
	path string
}

func (p *fileProvider) Get(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", p.path, err)
	}
	return string(data), nil
}

func (p *fileProvider) Set(ctx context.Context, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".token-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("restricting permissions: %w", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", p.path, err)
	}
	return nil
}

func (p *fileProvider) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", p.path, err)
	}
	return nil
}

// probeDir verifies the directory exists and is writable by creating and
// removing a probe file.
func probeDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
