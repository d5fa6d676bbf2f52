package transport

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
)

// errUnsafePath rejects archive entries that would land outside the destination.
var errUnsafePath = errors.New("archive entry escapes destination")

func extract(archive, dest, name string, kind lsp.ArchiveKind) error {
	switch kind {
	case lsp.ArchiveZip:
		return extractZip(archive, dest)
	case lsp.ArchiveTarGzip:
		return extractTarGzip(archive, dest)
	case lsp.ArchiveGzip:
		return extractGzip(archive, filepath.Join(dest, trimExt(name)))
	case lsp.ArchiveUncompressed, "":
		return copyFile(archive, filepath.Join(dest, name))
	default:
		return fmt.Errorf("unsupported archive kind %q", kind)
	}
}

// entryPath joins an archive entry name onto dest, refusing names that are
// absolute or climb out of dest.
func entryPath(dest, name string) (string, error) {
	clean := filepath.FromSlash(strings.TrimPrefix(name, "./"))
	if strings.Contains(name, `\`) || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %q", errUnsafePath, name)
	}
	return filepath.Join(dest, clean), nil
}

func extractZip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return err
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		target, err := entryPath(dest, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			// Releases ship plain scripts; links are not followed.
			continue
		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", f.Name, err)
			}
			err = writeFile(target, rc, mode.Perm())
			_ = rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func extractTarGzip(archive, dest string) error {
	f, err := os.Open(archive) //nolint:gosec // G304: temp file created by this package
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := entryPath(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, fs.FileMode(hdr.Mode).Perm()); err != nil { //nolint:gosec // G115: tar modes fit in 32 bits
				return err
			}
		}
	}
}

func extractGzip(archive, target string) error {
	f, err := os.Open(archive) //nolint:gosec // G304: temp file created by this package
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()
	return writeFile(target, gz, 0o644)
}

func copyFile(src, target string) error {
	f, err := os.Open(src) //nolint:gosec // G304: temp file created by this package
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return writeFile(target, f, 0o644)
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) //nolint:gosec // G304: target checked by entryPath
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { //nolint:gosec // G110: release assets come from a trusted registry
		_ = out.Close()
		return err
	}
	return out.Close()
}
