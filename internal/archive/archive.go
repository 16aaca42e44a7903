// Package archive unpacks release archives into a directory.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format identifies a supported archive container
type Format string

const (
	FormatZip      Format = "zip"
	FormatTar      Format = "tar"
	FormatTarGzip  Format = "tar.gz"
	FormatTarBzip2 Format = "tar.bz2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrUnsafePath        = errors.New("archive entry escapes destination")
)

// DetectFormat sniffs the archive format from its content
func DetectFormat(path string) (Format, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect archive format: %w", err)
	}

	for m := mt; m != nil; m = m.Parent() {
		switch m.String() {
		case "application/zip":
			return FormatZip, nil
		case "application/gzip":
			return FormatTarGzip, nil
		case "application/x-bzip2":
			return FormatTarBzip2, nil
		case "application/x-tar":
			return FormatTar, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
}

// Unpack extracts archivePath into dest, detecting the format from content.
// ctx is checked before every entry.
func Unpack(ctx context.Context, archivePath, dest string) (Format, error) {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatZip:
		err = unpackZip(ctx, archivePath, dest)
	default:
		err = unpackTarFile(ctx, archivePath, format, dest)
	}
	if err != nil {
		return format, fmt.Errorf("unpack %s: %w", format, err)
	}
	return format, nil
}

func unpackZip(ctx context.Context, archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		// Reader is still usable; entries are checked one by one below
		err = nil
	}
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := safeTarget(dest, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", f.Name, err)
			}
			continue
		}

		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	if f.Mode()&os.ModeSymlink != 0 {
		linkTarget, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read link %s: %w", f.Name, err)
		}
		return writeSymlink(string(linkTarget), target)
	}

	return writeFile(rc, target, f.Mode().Perm())
}

func unpackTarFile(ctx context.Context, archivePath string, format Format, dest string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	switch format {
	case FormatTarGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarBzip2:
		r = bzip2.NewReader(file)
	}

	return unpackTar(ctx, r, dest)
}

func unpackTar(ctx context.Context, r io.Reader, dest string) error {
	tr := tar.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %q", ErrUnsafePath, header.Name)
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		// Metadata-only records such as the pax_global_header written by git archive
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := safeTarget(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := writeFile(tr, target, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(header.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			source, err := safeTarget(dest, header.Linkname)
			if err != nil {
				return err
			}
			if err := copyFile(source, target); err != nil {
				return fmt.Errorf("hard link %s: %w", header.Name, err)
			}
		default:
			// Devices, fifos and other special files have no comparable content
			continue
		}
	}
}

// safeJoin resolves an archive entry name below dest
func safeJoin(dest, name string) (string, error) {
	cleaned := strings.TrimSuffix(filepath.FromSlash(name), string(filepath.Separator))
	if cleaned == "" || !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(dest, cleaned), nil
}

// safeTarget resolves name below dest and rejects it when an already extracted
// component on the way, or the entry itself, is a symlink. Writing through such
// a link would land outside dest.
func safeTarget(dest, name string) (string, error) {
	target, err := safeJoin(dest, name)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(dest, target)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	cur := dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return target, nil
		}
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("%w: %q passes through symlink %q", ErrUnsafePath, name, cur)
		}
	}
	return target, nil
}

func writeFile(r io.Reader, target string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return out.Close()
}

func writeSymlink(linkTarget, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.Symlink(linkTarget, target); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	return nil
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	return writeFile(in, target, info.Mode().Perm())
}
