package ipk

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// tar header layout.
const (
	blockSize = 512

	tarNameOff = 0
	tarNameLen = 100
	tarSizeOff = 124
	tarSizeLen = 12
	tarTypeOff = 156
)

type entryKind int

const (
	kindFile entryKind = iota
	kindDir
	kindOther
)

func (k entryKind) String() string {
	switch k {
	case kindFile:
		return "file"
	case kindDir:
		return "dir"
	default:
		return "other"
	}
}

type tarHeader struct {
	Name string
	Size int64
	Type byte
	Kind entryKind
}

// ReplayStats counts what a tar replay materialized.
type ReplayStats struct {
	Files   int   `json:"files"`
	Dirs    int   `json:"dirs"`
	Skipped int   `json:"skipped"`
	Bytes   int64 `json:"bytes"`
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// trimField cuts a fixed-width field at its first NUL and trims spaces.
func trimField(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return strings.Trim(string(field), " \x00")
}

// parseOctal reads an octal numeric field. Malformed values read as 0.
func parseOctal(field []byte) int64 {
	s := trimField(field)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 8, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func classify(flag byte) entryKind {
	switch flag {
	case '5', 'd':
		return kindDir
	case '0', 0, ' ':
		return kindFile
	default:
		return kindOther
	}
}

func parseTarHeader(block []byte) tarHeader {
	name := trimField(block[tarNameOff : tarNameOff+tarNameLen])
	name = strings.TrimPrefix(name, "./")
	flag := block[tarTypeOff]
	return tarHeader{
		Name: name,
		Size: parseOctal(block[tarSizeOff : tarSizeOff+tarSizeLen]),
		Type: flag,
		Kind: classify(flag),
	}
}

// padding is the number of bytes after size bytes of content up to the
// next block boundary.
func padding(size int64) int64 {
	return (blockSize - size%blockSize) % blockSize
}

func blocksFor(size int64) int64 {
	return (size + blockSize - 1) / blockSize
}

// safeJoin resolves name under dest and rejects names that escape it.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes destination", name)
	}
	return filepath.Join(dest, clean), nil
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("skip %d bytes: %w", n, err)
	}
	return nil
}

// replayTar writes the entries of a tar stream under dest. It stops at the
// first all-zero header block or when the stream ends between headers.
// Entries that are neither files nor directories are skipped.
func replayTar(r io.Reader, dest string) (ReplayStats, error) {
	var stats ReplayStats
	block := make([]byte, blockSize)
	for {
		if _, err := io.ReadFull(r, block); err == io.EOF || err == io.ErrUnexpectedEOF {
			return stats, nil
		} else if err != nil {
			return stats, fmt.Errorf("read header: %w", err)
		}
		if isZeroBlock(block) {
			return stats, nil
		}
		if trimField(block[tarNameOff:tarNameOff+tarNameLen]) == "" {
			return stats, nil
		}

		h := parseTarHeader(block)
		switch {
		case h.Kind == kindOther:
			if err := skip(r, blocksFor(h.Size)*blockSize); err != nil {
				return stats, fmt.Errorf("entry %q (type %q): %w", h.Name, h.Type, err)
			}
			stats.Skipped++
		case h.Name == "":
			// "./" itself: the destination root.
			if err := skip(r, blocksFor(h.Size)*blockSize); err != nil {
				return stats, err
			}
		case h.Kind == kindDir:
			target, err := safeJoin(dest, h.Name)
			if err != nil {
				return stats, err
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return stats, err
			}
			if err := skip(r, blocksFor(h.Size)*blockSize); err != nil {
				return stats, err
			}
			stats.Dirs++
		default:
			target, err := safeJoin(dest, h.Name)
			if err != nil {
				return stats, err
			}
			if err := writeFile(target, r, h.Size); err != nil {
				return stats, fmt.Errorf("entry %q: %w", h.Name, err)
			}
			if err := skip(r, padding(h.Size)); err != nil {
				return stats, fmt.Errorf("entry %q: %w", h.Name, err)
			}
			stats.Files++
			stats.Bytes += h.Size
		}
	}
}

func writeFile(target string, r io.Reader, size int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(out, r, size); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %d bytes: %w", size, err)
	}
	return out.Close()
}
