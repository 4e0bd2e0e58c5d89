package ipk

import (
	"bytes"
	"testing"
)

func TestParseArHeader(t *testing.T) {
	hdr := []byte("data.tar.gz     1700000000  0     0     100644  12345     `\n")
	if len(hdr) != arHeaderSize {
		t.Fatalf("fixture is %d bytes", len(hdr))
	}
	name, size, err := parseArHeader(hdr)
	if err != nil {
		t.Fatalf("parseArHeader() error = %v", err)
	}
	if name != "data.tar.gz" || size != 12345 {
		t.Fatalf("parseArHeader() = %q, %d; want data.tar.gz, 12345", name, size)
	}

	bad := bytes.Clone(hdr)
	copy(bad[arSizeOff:], "notanumber")
	if _, size, _ := parseArHeader(bad); size != 0 {
		t.Fatalf("parseArHeader(bad size) size = %d; want 0", size)
	}

	if _, _, err := parseArHeader(hdr[:59]); err == nil {
		t.Fatalf("parseArHeader(short) error = nil")
	}
}

func TestParseOctal(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"00000000005\x00", 5},
		{"     1750 \x00", 1000},
		{"\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00", 0},
		{"0000000009\x00\x00", 0},
		{"garbage\x00\x00\x00\x00\x00", 0},
	}
	for _, tt := range tests {
		if got := parseOctal([]byte(tt.in)); got != tt.want {
			t.Fatalf("parseOctal(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseTarHeader(t *testing.T) {
	h := parseTarHeader(rawHeader("./usr/palm/app.js", 0o777, '0'))
	if h.Name != "usr/palm/app.js" || h.Size != 0o777 || h.Kind != kindFile {
		t.Fatalf("parseTarHeader() = %+v", h)
	}

	tests := map[byte]entryKind{
		'0': kindFile, 0: kindFile, ' ': kindFile,
		'5': kindDir, 'd': kindDir,
		'1': kindOther, '2': kindOther, 'x': kindOther, 'L': kindOther,
	}
	for flag, want := range tests {
		if got := classify(flag); got != want {
			t.Fatalf("classify(%q) = %s; want %s", flag, got, want)
		}
	}
}

func TestPaddingAndBlocks(t *testing.T) {
	tests := []struct {
		size   int64
		pad    int64
		blocks int64
	}{
		{0, 0, 0},
		{1, 511, 1},
		{5, 507, 1},
		{512, 0, 1},
		{513, 511, 2},
		{1024, 0, 2},
	}
	for _, tt := range tests {
		if got := padding(tt.size); got != tt.pad {
			t.Fatalf("padding(%d) = %d; want %d", tt.size, got, tt.pad)
		}
		if got := blocksFor(tt.size); got != tt.blocks {
			t.Fatalf("blocksFor(%d) = %d; want %d", tt.size, got, tt.blocks)
		}
		if (tt.size+tt.pad)%blockSize != 0 {
			t.Fatalf("size %d + pad %d not block aligned", tt.size, tt.pad)
		}
	}
}
