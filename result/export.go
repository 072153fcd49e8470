package result

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrUnsupportedFormat is returned by Export for an unknown file extension.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// FormatForPath picks the export format from the file extension.
// Supported extensions are .json, .csv, .md and .markdown.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: .json, .csv, .md, .markdown)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Export renders res in the format implied by path and writes it
// atomically while holding an exclusive lock on "<path>.lock", so readers
// never see a partial report and concurrent runs do not interleave.
func Export(path string, res *Result) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		err = WriteJSON(&buf, res)
	case FormatCSV:
		err = WriteCSV(&buf, res)
	case FormatMarkdown:
		err = WriteMarkdown(&buf, res)
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock on %s: %w", path, err)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	return atomicWrite(path, buf.Bytes())
}

// atomicWrite writes data to a temp file in the target directory and renames
// it over path.
func atomicWrite(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".linkguard-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	cleanup := func(cause error) error {
		closeErr := tempFile.Close()
		removeErr := os.Remove(tempPath)
		return errors.Join(cause, closeErr, removeErr)
	}

	if _, err := tempFile.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp file: %w", err))
	}
	if err := tempFile.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
