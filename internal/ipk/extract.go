// Package ipk reads and writes legacy installable packages: an ar container
// whose data.tar* member is a gzip-compressed tar of the install tree.
package ipk

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Stage names a step of the extraction pipeline.
type Stage string

const (
	StageValidate   Stage = "validate_container"
	StageScan       Stage = "scan_entries"
	StageLocate     Stage = "locate_payload"
	StageDecompress Stage = "decompress"
	StagePrepare    Stage = "prepare_destination"
	StageReplay     Stage = "replay_tar"
)

// ExtractError is the single failure reported by Extract.
type ExtractError struct {
	Stage   Stage
	Archive string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("ipk: extract %s: %s: %v", e.Archive, e.Stage, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Result describes a completed extraction.
type Result struct {
	Root    string      `json:"root"`
	Payload string      `json:"payload"`
	Stats   ReplayStats `json:"stats"`
}

// Extract unpacks the payload of the archive at path into dest and returns
// the root of the tree. dest is removed and recreated first. On failure the
// destination is removed and a *ExtractError is returned.
//
// Extracting two archives into the same dest concurrently is not safe.
func Extract(path, dest string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, &ExtractError{Stage: StageValidate, Archive: path, Err: err}
	}
	defer f.Close()
	return ExtractReader(f, path, dest)
}

// ExtractReader is Extract for an already-open archive. name only labels
// errors and logs.
func ExtractReader(src io.Reader, name, dest string) (Result, error) {
	fail := func(stage Stage, err error) (Result, error) {
		slog.Warn("ipk extraction failed", "archive", name, "stage", stage, "error", err)
		return Result{}, &ExtractError{Stage: stage, Archive: name, Err: err}
	}

	br := bufio.NewReader(src)
	if err := validateContainer(br); err != nil {
		return fail(StageValidate, err)
	}

	entries, err := scanEntries(br)
	if err != nil {
		return fail(StageScan, err)
	}

	payload, err := locatePayload(entries)
	if err != nil {
		return fail(StageLocate, err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(payload.Data))
	if err != nil {
		return fail(StageDecompress, err)
	}
	defer gz.Close()
	stream := &trackedReader{r: gz}

	root, err := filepath.Abs(dest)
	if err != nil {
		return fail(StagePrepare, err)
	}
	if err := resetDir(root); err != nil {
		return fail(StagePrepare, err)
	}

	stats, err := replayTar(stream, root)
	if err == nil {
		// The gzip trailer (CRC32, size) is only checked once the stream is
		// read to its end, which replay stops short of at the zero blocks.
		_, _ = io.Copy(io.Discard, stream)
	}
	if err == nil && stream.err != nil {
		err = stream.err
	}
	if err != nil {
		_ = os.RemoveAll(root)
		if stream.err != nil {
			return fail(StageDecompress, stream.err)
		}
		return fail(StageReplay, err)
	}

	slog.Info("ipk extracted",
		"archive", name,
		"payload", payload.Name,
		"dest", root,
		"files", stats.Files,
		"dirs", stats.Dirs,
		"skipped", stats.Skipped,
		"bytes", stats.Bytes,
	)
	return Result{Root: root, Payload: payload.Name, Stats: stats}, nil
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	return os.MkdirAll(dir, 0o755)
}

// trackedReader remembers decompression errors so they are not reported as
// tar replay failures.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
