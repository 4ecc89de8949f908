// Package storage provides the line-oriented JSONL and atomic-write
// primitives underneath the Thought DB stores.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileMeta is the cheap (size, mtime) identity of a log file used for
// cache and snapshot staleness checks. A missing file has the zero value.
type FileMeta struct {
	Size    int64 `json:"size"`
	MtimeNS int64 `json:"mtime_ns"`
}

// Meta stats path, mapping a missing file to the zero FileMeta.
func Meta(path string) FileMeta {
	st, err := os.Stat(path)
	if err != nil {
		return FileMeta{}
	}
	return FileMeta{Size: st.Size(), MtimeNS: st.ModTime().UnixNano()}
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o750)
}

// AppendJSONL marshals v and appends it as a single line to path,
// creating the parent directory if needed. One call is one durable line;
// a failed call leaves no partial record visible to readers.
func AppendJSONL(path string, v any) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640) // #nosec G304 - path comes from the store layout
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}
	return f.Close()
}

// IterJSONL reads path line by line, passing each raw JSON line to fn.
// Blank lines are skipped. A missing file is an empty log, not an error.
// fn returning an error stops the scan and propagates the error.
func IterJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path) // #nosec G304 - path comes from the store layout
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading log: %w", err)
	}
	return nil
}

// ReadJSON unmarshals path into v. A missing file returns os.ErrNotExist
// (via os.ReadFile) so callers can treat it as "no snapshot yet".
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the store layout
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteJSONAtomic writes v as indented JSON to path via a temp file and
// rename, so a crash mid-write never leaves a partially written file.
func WriteJSONAtomic(path string, v any) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, append(data, '\n'), 0o640); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteJSONLAtomic rewrites path as a JSONL file containing rows, via
// temp-then-rename. Used by compaction; normal writes go through AppendJSONL.
func WriteJSONLAtomic(path string, rows [][]byte) (lines int, bytes int, err error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return 0, 0, fmt.Errorf("creating directory: %w", err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640) // #nosec G304
	if err != nil {
		return 0, 0, fmt.Errorf("writing temp file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, row := range rows {
		n, err := w.Write(append(row, '\n'))
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return 0, 0, fmt.Errorf("writing row: %w", err)
		}
		bytes += n
		lines++
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return 0, 0, fmt.Errorf("flushing: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, 0, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, 0, fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return lines, bytes, nil
}

// NowRFC3339 returns the current UTC time in second-resolution RFC3339.
// Thought DB timestamps are compared lexicographically, so the format
// must stay fixed-width.
func NowRFC3339() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// FilenameSafeTS converts an RFC3339 timestamp into a stamp usable in
// file names: 2026-02-22T12:34:56Z -> 20260222T123456Z.
func FilenameSafeTS(ts string) string {
	return strings.NewReplacer("-", "", ":", "").Replace(ts)
}
