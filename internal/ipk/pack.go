package ipk

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Control is the package metadata written to control.tar.gz.
type Control struct {
	Package      string
	Version      string
	Architecture string
	Maintainer   string
	Description  string
}

func (c Control) render() []byte {
	arch := c.Architecture
	if arch == "" {
		arch = "all"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", c.Package)
	fmt.Fprintf(&b, "Version: %s\n", c.Version)
	fmt.Fprintf(&b, "Architecture: %s\n", arch)
	if c.Maintainer != "" {
		fmt.Fprintf(&b, "Maintainer: %s\n", c.Maintainer)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", c.Description)
	}
	return []byte(b.String())
}

// Pack writes srcDir as an ipk to w: debian-binary, control.tar.gz and
// data.tar.gz members in an ar container. Paths must fit the 100-byte tar
// name field.
func Pack(srcDir string, ctl Control, w io.Writer) error {
	data, err := tarGzDir(srcDir)
	if err != nil {
		return fmt.Errorf("ipk: pack data: %w", err)
	}
	control, err := tarGzFiles(map[string][]byte{"control": ctl.render()})
	if err != nil {
		return fmt.Errorf("ipk: pack control: %w", err)
	}

	aw := arWriter{w: w, mtime: time.Now().Unix()}
	if err := aw.magic(); err != nil {
		return err
	}
	for _, m := range []struct {
		name string
		data []byte
	}{
		{"debian-binary", []byte("2.0\n")},
		{"control.tar.gz", control},
		{PayloadPrefix + ".gz", data},
	} {
		if err := aw.entry(m.name, m.data); err != nil {
			return fmt.Errorf("ipk: write %s: %w", m.name, err)
		}
	}
	return nil
}

// PackFile is Pack into a new file at out.
func PackFile(srcDir string, ctl Control, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := Pack(srcDir, ctl, f); err != nil {
		_ = f.Close()
		_ = os.Remove(out)
		return err
	}
	return f.Close()
}

type arWriter struct {
	w     io.Writer
	mtime int64
}

func (a arWriter) magic() error {
	_, err := io.WriteString(a.w, arMagic)
	return err
}

func (a arWriter) entry(name string, data []byte) error {
	if len(name) > arNameLen {
		return fmt.Errorf("ar member name %q longer than %d bytes", name, arNameLen)
	}
	hdr := fmt.Sprintf("%-16s%-12d%-6d%-6d%-8s%-10d`\n", name, a.mtime, 0, 0, "100644", len(data))
	if len(hdr) != arHeaderSize {
		return fmt.Errorf("ar header for %q is %d bytes", name, len(hdr))
	}
	if _, err := io.WriteString(a.w, hdr); err != nil {
		return err
	}
	if _, err := a.w.Write(data); err != nil {
		return err
	}
	if len(data)%2 != 0 {
		_, err := a.w.Write([]byte{'\n'})
		return err
	}
	return nil
}

func tarGzDir(root string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := "./" + filepath.ToSlash(rel)
		if d.IsDir() {
			name += "/"
		}
		if len(name) > tarNameLen {
			return fmt.Errorf("path %q longer than %d bytes", name, tarNameLen)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		mtime := info.ModTime().Truncate(time.Second)
		switch {
		case d.IsDir():
			return tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeDir, Mode: 0o755, ModTime: mtime, Format: tar.FormatUSTAR})
		case info.Mode().IsRegular():
			if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: info.Size(), ModTime: mtime, Format: tar.FormatUSTAR}); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tarGzFiles(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, data := range files {
		hdr := &tar.Header{
			Name:     "./" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(data)),
			ModTime:  time.Now().Truncate(time.Second),
			Format:   tar.FormatUSTAR,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
