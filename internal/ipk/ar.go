package ipk

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ar container layout.
const (
	arMagic      = "!<arch>\n"
	arHeaderSize = 60

	arNameOff = 0
	arNameLen = 16
	arSizeOff = 48
	arSizeLen = 10
)

// PayloadPrefix names the ar entry holding the installable file tree.
const PayloadPrefix = "data.tar"

var (
	ErrInvalidContainer = errors.New("invalid container")
	ErrPayloadNotFound  = errors.New("payload not found")
)

type arEntry struct {
	Name string
	Size int64
	Data []byte
}

// parseArHeader reads the name and decimal size fields of a 60-byte entry
// header. An unparseable size reads as 0.
func parseArHeader(hdr []byte) (string, int64, error) {
	if len(hdr) < arHeaderSize {
		return "", 0, fmt.Errorf("ar header: short header (%d bytes)", len(hdr))
	}
	name := strings.TrimSpace(string(hdr[arNameOff : arNameOff+arNameLen]))
	size, err := strconv.ParseInt(strings.TrimSpace(string(hdr[arSizeOff:arSizeOff+arSizeLen])), 10, 64)
	if err != nil || size < 0 {
		size = 0
	}
	return name, size, nil
}

func validateContainer(r io.Reader) error {
	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("%w: read magic: %v", ErrInvalidContainer, err)
	}
	if string(magic) != arMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidContainer, magic)
	}
	return nil
}

// scanEntries reads entries until the stream is exhausted. A trailing
// partial header ends the scan; truncated entry content is an error.
func scanEntries(r *bufio.Reader) ([]arEntry, error) {
	var entries []arEntry
	hdr := make([]byte, arHeaderSize)
	for {
		if _, err := io.ReadFull(r, hdr); err == io.EOF || err == io.ErrUnexpectedEOF {
			return entries, nil
		} else if err != nil {
			return entries, err
		}

		name, size, err := parseArHeader(hdr)
		if err != nil {
			return entries, err
		}
		data, err := io.ReadAll(io.LimitReader(r, size))
		if err != nil {
			return entries, fmt.Errorf("ar entry %q: %w", name, err)
		}
		if int64(len(data)) != size {
			return entries, fmt.Errorf("ar entry %q: read %d of %d bytes: %w", name, len(data), size, io.ErrUnexpectedEOF)
		}
		if size%2 != 0 {
			if _, err := r.ReadByte(); err != nil && err != io.EOF {
				return entries, fmt.Errorf("ar entry %q: skip pad: %w", name, err)
			}
		}
		entries = append(entries, arEntry{Name: name, Size: size, Data: data})
	}
}

func locatePayload(entries []arEntry) (arEntry, error) {
	for _, e := range entries {
		if strings.HasPrefix(e.Name, PayloadPrefix) {
			return e, nil
		}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return arEntry{}, fmt.Errorf("%w: entries %v", ErrPayloadNotFound, names)
}
