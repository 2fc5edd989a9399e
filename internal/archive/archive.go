// Package archive persists processed messages and their delivery status
// records to the filesystem for auditing.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/infodancer/listrelay/internal/status"
)

// ErrArchive indicates an archive write failed. Archival failures are
// degraded conditions: the caller logs them and proceeds with dispatch.
var ErrArchive = errors.New("archive write failed")

// Archiver writes archive entries under a unique per-invocation base name so
// concurrent invocations never collide. A nil-safe disabled Archiver (empty
// directory) turns every call into a successful no-op.
type Archiver struct {
	dir  string
	base string
}

// New creates an Archiver for the given directory. An empty directory
// disables archiving.
func New(dir string) *Archiver {
	return &Archiver{dir: dir}
}

// Enabled reports whether archiving is configured.
func (a *Archiver) Enabled() bool {
	return a.dir != ""
}

// ensureBase creates the archive directory and picks the unique base name
// for this invocation. The nanosecond timestamp keeps entries sortable; the
// random suffix disambiguates concurrent invocations.
func (a *Archiver) ensureBase() error {
	if a.base != "" {
		return nil
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating directory: %v", ErrArchive, err)
	}
	a.base = fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
	return nil
}

// ArchiveMessage writes the raw message bytes to <base>.eml. The file is
// created exclusively and never rewritten afterwards.
func (a *Archiver) ArchiveMessage(raw []byte) error {
	if !a.Enabled() {
		return nil
	}
	if err := a.ensureBase(); err != nil {
		return err
	}

	path := filepath.Join(a.dir, a.base+".eml")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrArchive, path, err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return fmt.Errorf("%w: writing %s: %v", ErrArchive, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrArchive, path, err)
	}
	return nil
}

// WriteStatus writes the status record to <base>-status.json via a
// temporary file and rename, so a concurrent reader never observes a
// half-written record. Calling it again replaces the earlier snapshot while
// leaving the archived message untouched.
func (a *Archiver) WriteStatus(rec *status.Record) error {
	if !a.Enabled() {
		return nil
	}
	if err := a.ensureBase(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding status: %v", ErrArchive, err)
	}
	data = append(data, '\n')

	path := filepath.Join(a.dir, a.base+"-status.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrArchive, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: renaming %s: %v", ErrArchive, tmp, err)
	}
	return nil
}

// Base returns the unique base name chosen for this invocation, or the
// empty string when nothing has been written yet.
func (a *Archiver) Base() string {
	return a.base
}
