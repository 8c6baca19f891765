// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileFormat selects the encoding of a FileSink.
type FileFormat string

const (
	FormatJSON FileFormat = "json"
	FormatYAML FileFormat = "yaml"
)

const documentVersion = 1

type document struct {
	Version int    `json:"version" yaml:"version"`
	Turns   []Turn `json:"turns" yaml:"turns"`
}

// FileSink stores a conversation as a single JSON or YAML document.
type FileSink struct {
	path   string
	format FileFormat
}

// NewFileSink creates a sink writing to path. Files ending in .yaml or
// .yml are written as YAML, everything else as JSON.
func NewFileSink(path string) *FileSink {
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return &FileSink{path: path, format: format}
}

// Path returns the file the sink writes to.
func (f *FileSink) Path() string { return f.path }

// Format returns the encoding used by the sink.
func (f *FileSink) Format() FileFormat { return f.format }

// Load implements Sink. A missing file is an empty conversation.
func (f *FileSink) Load(_ context.Context) ([]Turn, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var doc document
	switch f.format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse conversation file: %w", err)
	}
	return doc.Turns, nil
}

// Save implements Sink. The file is replaced atomically.
func (f *FileSink) Save(_ context.Context, turns []Turn) error {
	doc := document{Version: documentVersion, Turns: turns}
	if doc.Turns == nil {
		doc.Turns = []Turn{}
	}

	var (
		data []byte
		err  error
	)
	switch f.format {
	case FormatYAML:
		data, err = yaml.Marshal(doc)
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create conversation directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace conversation file: %w", err)
	}
	return nil
}
