/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package output persists generated documents. The core pipeline only writes
// through the Sink interface, and only after a generation fully succeeded.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	documentExtension = ".json"
	documentFileMode  = 0o600
)

// Sink saves one generated document. When path ends in a recognized document
// file extension it is treated as a literal file path; otherwise it is a
// directory and defaultFileName is appended.
type Sink interface {
	Save(path, defaultFileName string, document interface{}) error
}

// FileSink writes documents as indented JSON files.
type FileSink struct{}

// NewFileSink builds a file-backed sink.
func NewFileSink() *FileSink {
	return &FileSink{}
}

// Save implements Sink.
func (s *FileSink) Save(path, defaultFileName string, document interface{}) error {
	target := ResolvePath(path, defaultFileName)

	raw, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	if err := os.WriteFile(target, raw, documentFileMode); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	return nil
}

// ResolvePath applies the literal-vs-directory rule to an output path.
func ResolvePath(path, defaultFileName string) string {
	if strings.HasSuffix(path, documentExtension) {
		return path
	}

	if !strings.HasSuffix(defaultFileName, documentExtension) {
		defaultFileName += documentExtension
	}

	return filepath.Join(path, defaultFileName)
}
