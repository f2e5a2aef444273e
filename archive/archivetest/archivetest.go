// Package archivetest builds small package archives for tests.
package archivetest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// File is one archive entry. A name ending in "/" is written as a directory.
type File struct {
	Name    string
	Content string
	Mode    int64
}

// WriteTarBz2 writes files in order into a bzip2 compressed tarball.
func WriteTarBz2(path string, files []File) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	bz, err := bzip2.NewWriter(out, nil)
	if err != nil {
		return err
	}
	if err := writeTar(bz, files); err != nil {
		return err
	}
	if err := bz.Close(); err != nil {
		return err
	}
	return out.Close()
}

// WriteConda writes a .conda container. Files under info/ go into the info segment,
// everything else into the pkg segment.
func WriteConda(path string, files []File) error {
	stem := strings.TrimSuffix(filepath.Base(path), ".conda")

	var info, pkg []File
	for _, f := range files {
		if strings.HasPrefix(strings.TrimPrefix(f.Name, "./"), "info/") {
			info = append(info, f)
		} else {
			pkg = append(pkg, f)
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	meta, err := zw.Create("metadata.json")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(meta, `{"conda_pkg_format_version": 2}`); err != nil {
		return err
	}
	for _, segment := range []struct {
		name  string
		files []File
	}{
		{name: fmt.Sprintf("pkg-%s.tar.zst", stem), files: pkg},
		{name: fmt.Sprintf("info-%s.tar.zst", stem), files: info},
	} {
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return err
		}
		if err := writeTar(enc, segment.files); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: segment.name, Method: zip.Store})
		if err != nil {
			return err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func writeTar(w io.Writer, files []File) error {
	tw := tar.NewWriter(w)
	for _, f := range files {
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		hdr := &tar.Header{
			Name:    f.Name,
			Mode:    mode,
			ModTime: time.Unix(0, 0),
		}
		if strings.HasSuffix(f.Name, "/") {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(f.Content))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, f.Content); err != nil {
				return err
			}
		}
	}
	return tw.Close()
}
