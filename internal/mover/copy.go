package mover

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
)

// copyBufPool recycles copy buffers across concurrent entry moves.
var copyBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 256*1024)
		return &buf
	},
}

// Relocate moves source to destination with a single rename, falling back
// to copy-verify-delete when the destination sits on another filesystem.
// It applies no conflict check and no retry policy; callers own both.
func Relocate(source, destination string) error {
	err := os.Rename(source, destination)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, syscall.EXDEV) {
		return moveAcrossDevices(source, destination)
	}
	return err
}

// moveAcrossDevices implements the rename fallback for destinations on a
// different filesystem: copy, verify, and only then remove the source. A
// failed or unverified copy leaves the source untouched and no partial
// artifact at the destination.
func moveAcrossDevices(source, destination string) error {
	info, err := os.Lstat(source)
	if err != nil {
		return fmt.Errorf("failed to stat source %s: %w", source, err)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return moveSymlink(source, destination)
	case info.IsDir():
		return moveTree(source, destination)
	default:
		return moveFile(source, destination, info)
	}
}

func moveFile(source, destination string, info os.FileInfo) error {
	if err := CopyFile(source, destination, info); err != nil {
		return err
	}
	if err := os.Remove(source); err != nil {
		// The copy landed but the source lingers. Retrying would only hit
		// the conflict check, so surface it as unrecoverable with both
		// paths named for manual cleanup.
		return domainerrors.Wrapf(err, domainerrors.CodePermanentMove,
			"copied to %s but failed to remove source %s", destination, source)
	}
	return nil
}

func moveTree(source, destination string) error {
	if err := CopyTree(source, destination); err != nil {
		os.RemoveAll(destination)
		return err
	}
	if err := verifyTree(source, destination); err != nil {
		os.RemoveAll(destination)
		return err
	}
	if err := os.RemoveAll(source); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodePermanentMove,
			"copied tree to %s but failed to remove source %s", destination, source)
	}
	return nil
}

func moveSymlink(source, destination string) error {
	target, err := os.Readlink(source)
	if err != nil {
		return fmt.Errorf("failed to read symlink %s: %w", source, err)
	}
	if err := os.Symlink(target, destination); err != nil {
		return fmt.Errorf("failed to recreate symlink at %s: %w", destination, err)
	}
	if err := os.Remove(source); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodePermanentMove,
			"recreated link at %s but failed to remove source %s", destination, source)
	}
	return nil
}

// CopyFile copies one regular file via a temporary file in the destination
// directory, verifying the byte count before the temp file is promoted.
// The source is never modified here.
func CopyFile(source, destination string, info os.FileInfo) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", source, err)
	}
	defer in.Close()

	dstDir := filepath.Dir(destination)
	out, err := os.CreateTemp(dstDir, ".watchzone-*.partial")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dstDir, err)
	}

	tempPath := out.Name()
	defer func() {
		out.Close()
		if tempPath != "" {
			os.Remove(tempPath)
		}
	}()

	bufPtr := copyBufPool.Get().(*[]byte)
	defer copyBufPool.Put(bufPtr)

	written, err := io.CopyBuffer(out, in, *bufPtr)
	if err != nil {
		return fmt.Errorf("failed to copy contents to %s: %w", tempPath, err)
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", tempPath, err)
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tempPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tempPath, err)
	}

	if written != info.Size() {
		return domainerrors.Verificationf("copied %d bytes of %s, expected %d", written, source, info.Size())
	}

	if err := os.Chtimes(tempPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set timestamps on %s: %w", tempPath, err)
	}

	// Atomic promotion; the destination never holds a partial file.
	if err := os.Rename(tempPath, destination); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", tempPath, err)
	}

	tempPath = ""
	return nil
}

// CopyTree mirrors a directory tree. Parent directories are created before
// their contents since WalkDir visits them first.
func CopyTree(source, destination string) error {
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, rel)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("failed to read symlink %s: %w", path, err)
			}
			return os.Symlink(linkTarget, target)
		default:
			return CopyFile(path, target, info)
		}
	})
}

// verifyTree checks every regular file in source against its copy,
// comparing sizes, before the source tree may be removed.
func verifyTree(source, destination string) error {
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, rel)

		dstInfo, err := os.Lstat(target)
		if err != nil {
			return domainerrors.Verificationf("copied tree is missing %s", target)
		}
		if dstInfo.Size() != info.Size() {
			return domainerrors.Verificationf("size mismatch for %s: source %d, copy %d", rel, info.Size(), dstInfo.Size())
		}
		return nil
	})
}
