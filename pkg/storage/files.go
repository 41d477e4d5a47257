// Copyright 2024 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileHandler appends rows to one CSV file per kind, namespaced by a hash of
// owner/name so concurrent workers never collide. Headers are written lazily
// on the first append; every value is quoted.
type fileHandler struct {
	dir    string
	prefix string

	files   map[string]*os.File
	writers map[string]*bufio.Writer
}

func newFileHandler(owner, name, dir string) *fileHandler {
	sum := sha256.Sum256([]byte(owner + "/" + name))
	return &fileHandler{
		dir:     dir,
		prefix:  hex.EncodeToString(sum[:]),
		files:   make(map[string]*os.File),
		writers: make(map[string]*bufio.Writer),
	}
}

func (h *fileHandler) baseName(kind string) string {
	return h.prefix + "_" + kind + ".csv"
}

func (h *fileHandler) path(kind string) string {
	return filepath.Join(h.dir, h.baseName(kind))
}

// append writes one quoted row for the kind, creating the file and writing
// the header first when the kind has not been seen yet.
func (h *fileHandler) append(kind string, header, values []string) error {
	w, ok := h.writers[kind]
	if !ok {
		if err := os.MkdirAll(h.dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		f, err := os.OpenFile(h.path(kind), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open %s file: %w", kind, err)
		}
		h.files[kind] = f
		w = bufio.NewWriter(f)
		h.writers[kind] = w
		if err := writeRow(w, header); err != nil {
			return fmt.Errorf("failed to write %s header: %w", kind, err)
		}
	}
	if err := writeRow(w, values); err != nil {
		return fmt.Errorf("failed to write %s row: %w", kind, err)
	}
	return nil
}

func writeRow(w *bufio.Writer, values []string) error {
	for i, v := range values {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err //nolint:wrapcheck // wrapped by caller
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(v, `"`, `""`) + `"`); err != nil {
			return err //nolint:wrapcheck // wrapped by caller
		}
	}
	return w.WriteByte('\n') //nolint:wrapcheck // wrapped by caller
}

// loadPath returns the load-time form file:///<basename> when the kind's file
// exists on disk, and false otherwise.
func (h *fileHandler) loadPath(kind string) (string, bool) {
	if _, err := os.Stat(h.path(kind)); err != nil {
		return "", false
	}
	return "file:///" + h.baseName(kind), true
}

// close flushes and closes every open file.
func (h *fileHandler) close() error {
	var merr error
	for kind, w := range h.writers {
		if err := w.Flush(); err != nil {
			merr = errors.Join(merr, fmt.Errorf("failed to flush %s file: %w", kind, err))
		}
	}
	for kind, f := range h.files {
		if err := f.Close(); err != nil {
			merr = errors.Join(merr, fmt.Errorf("failed to close %s file: %w", kind, err))
		}
	}
	h.writers = make(map[string]*bufio.Writer)
	h.files = make(map[string]*os.File)
	return merr
}

// deleteAll removes every CSV file carrying this repository's prefix,
// including leftovers from an earlier interrupted run.
func (h *fileHandler) deleteAll() error {
	if err := h.close(); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(h.dir, h.prefix+"_*.csv"))
	if err != nil {
		return fmt.Errorf("failed to list repository files: %w", err)
	}
	var merr error
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			merr = errors.Join(merr, fmt.Errorf("failed to remove %s: %w", m, err))
		}
	}
	return merr
}
