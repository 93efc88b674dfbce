// Package fileops implements the file and folder toolkit behind the CLI
// subcommands: creation, relocation, copying, archiving, deletion, and
// inspection. Every operation is confined to a base directory; paths that
// resolve outside it are rejected before anything touches the filesystem.
package fileops

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
	"github.com/add0794/automated-file-mover/internal/mover"
)

// maxViewBytes caps how much of a file View returns.
const maxViewBytes = 1 << 20

// Manager performs toolkit operations under a fixed base directory.
type Manager struct {
	baseDir string
	logger  *slog.Logger
}

// New creates a Manager rooted at baseDir. The directory does not have to
// exist yet; operations create what they need underneath it.
func New(logger *slog.Logger, baseDir string) (*Manager, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, domainerrors.InvalidInput("base directory must not be empty")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInvalidInput,
			"cannot resolve base directory %s", baseDir)
	}
	return &Manager{baseDir: abs, logger: logger}, nil
}

// BaseDir returns the absolute directory all operations resolve against.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// resolve joins name onto the base directory and rejects anything that
// would land outside it. Absolute inputs are refused outright; relative
// ones may use separators but cannot climb above the base.
func (m *Manager) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", domainerrors.InvalidInput("path must not be empty")
	}
	if filepath.IsAbs(name) {
		return "", domainerrors.InvalidInputf("path %s must be relative to %s", name, m.baseDir)
	}
	path := filepath.Join(m.baseDir, name)
	rel, err := filepath.Rel(m.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domainerrors.InvalidInputf("path %s escapes the base directory %s", name, m.baseDir)
	}
	return path, nil
}

// CreateFolder creates a new folder under the base directory, parents
// included. The folder must not already exist.
func (m *Manager) CreateFolder(name string) (string, error) {
	path, err := m.resolve(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(path); err == nil {
		return "", domainerrors.AlreadyExistsf("folder %s already exists", path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	m.logger.Info("folder created", "path", path)
	return path, nil
}

// CreateFile creates a file holding content. Characters listed in
// removeChars are stripped from the content first. The file must not
// already exist; missing parent folders are created.
func (m *Manager) CreateFile(name, content, removeChars string) (string, error) {
	path, err := m.resolve(name)
	if err != nil {
		return "", err
	}
	for _, r := range removeChars {
		content = strings.ReplaceAll(content, string(r), "")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create parent folders for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", domainerrors.AlreadyExistsf("file %s already exists", path)
		}
		return "", fmt.Errorf("failed to create file %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	m.logger.Info("file created", "path", path, "bytes", len(content))
	return path, nil
}

// Move relocates a file or folder. A destination naming an existing folder
// moves the source inside it under its current name. Existing targets are
// never overwritten. Destinations on another filesystem get the same
// copy-verify-delete fallback the daemon uses.
func (m *Manager) Move(source, destination string) (string, error) {
	src, err := m.resolve(source)
	if err != nil {
		return "", err
	}
	dst, err := m.resolve(destination)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(src); err != nil {
		return "", domainerrors.NotFoundf("source %s not found", src)
	}
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if _, err := os.Lstat(dst); err == nil {
		return "", domainerrors.AlreadyExistsf("destination %s already exists", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination parents: %w", err)
	}
	if err := mover.Relocate(src, dst); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", src, err)
	}
	m.logger.Info("entry moved", "source", src, "destination", dst)
	return dst, nil
}

// Rename gives a file or folder a new path under the base directory.
// Unlike Move it never reparents into an existing folder; the new path is
// taken literally.
func (m *Manager) Rename(oldName, newName string) (string, error) {
	src, err := m.resolve(oldName)
	if err != nil {
		return "", err
	}
	dst, err := m.resolve(newName)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(src); err != nil {
		return "", domainerrors.NotFoundf("source %s not found", src)
	}
	if _, err := os.Lstat(dst); err == nil {
		return "", domainerrors.AlreadyExistsf("target %s already exists", dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", src, err)
	}
	m.logger.Info("entry renamed", "from", src, "to", dst)
	return dst, nil
}

// Copy duplicates a file or folder, folders recursively. A file copied
// onto an existing folder lands inside it under its current name.
// Symbolic links are copied as links.
func (m *Manager) Copy(source, destination string) (string, error) {
	src, err := m.resolve(source)
	if err != nil {
		return "", err
	}
	dst, err := m.resolve(destination)
	if err != nil {
		return "", err
	}
	info, err := os.Lstat(src)
	if err != nil {
		return "", domainerrors.NotFoundf("source %s not found", src)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return "", fmt.Errorf("failed to read symlink %s: %w", src, err)
		}
		if err := os.Symlink(target, dst); err != nil {
			return "", fmt.Errorf("failed to copy symlink to %s: %w", dst, err)
		}
	case info.IsDir():
		if _, err := os.Lstat(dst); err == nil {
			return "", domainerrors.AlreadyExistsf("destination %s already exists", dst)
		}
		if err := mover.CopyTree(src, dst); err != nil {
			os.RemoveAll(dst)
			return "", fmt.Errorf("failed to copy folder %s: %w", src, err)
		}
	default:
		if dstInfo, err := os.Stat(dst); err == nil && dstInfo.IsDir() {
			dst = filepath.Join(dst, filepath.Base(src))
		}
		if _, err := os.Lstat(dst); err == nil {
			return "", domainerrors.AlreadyExistsf("destination %s already exists", dst)
		}
		if err := mover.CopyFile(src, dst, info); err != nil {
			return "", fmt.Errorf("failed to copy %s: %w", src, err)
		}
	}

	m.logger.Info("entry copied", "source", src, "destination", dst)
	return dst, nil
}

// Zip archives a folder's contents into a sibling .zip file named after
// the folder. Entry names inside the archive are relative to the folder
// with forward slashes, so it unpacks the same everywhere.
func (m *Manager) Zip(folderName string) (string, error) {
	path, err := m.resolve(folderName)
	if err != nil {
		return "", err
	}
	if path == m.baseDir {
		return "", domainerrors.InvalidInput("cannot archive the base directory itself")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", domainerrors.NotFoundf("folder %s not found", path)
	}
	if !info.IsDir() {
		return "", domainerrors.InvalidInputf("%s is not a folder", path)
	}

	zipPath := path + ".zip"
	f, err := os.OpenFile(zipPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", domainerrors.AlreadyExistsf("archive %s already exists", zipPath)
		}
		return "", fmt.Errorf("failed to create archive %s: %w", zipPath, err)
	}

	zw := zip.NewWriter(f)
	archiveErr := addTree(zw, path)
	if err := zw.Close(); archiveErr == nil {
		archiveErr = err
	}
	if err := f.Close(); archiveErr == nil {
		archiveErr = err
	}
	if archiveErr != nil {
		os.Remove(zipPath)
		return "", fmt.Errorf("failed to archive %s: %w", path, archiveErr)
	}

	m.logger.Info("folder archived", "folder", path, "archive", zipPath)
	return zipPath, nil
}

// addTree writes every entry under root into the archive, folders as
// explicit entries so empty ones survive the round trip.
func addTree(zw *zip.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
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
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = io.Copy(dst, src)
		return err
	})
}

// Delete removes a file or folder, folders recursively. The base directory
// itself cannot be deleted.
func (m *Manager) Delete(name string) error {
	path, err := m.resolve(name)
	if err != nil {
		return err
	}
	if path == m.baseDir {
		return domainerrors.InvalidInput("refusing to delete the base directory")
	}
	info, err := os.Lstat(path)
	if err != nil {
		return domainerrors.NotFoundf("%s does not exist", path)
	}
	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to delete folder %s: %w", path, err)
		}
	} else if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	m.logger.Info("entry deleted", "path", path)
	return nil
}

// View returns a file's contents, or a folder's entry names one per line.
// Files larger than maxViewBytes are refused rather than truncated.
func (m *Manager) View(name string) (string, error) {
	path, err := m.resolve(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", domainerrors.NotFoundf("%s does not exist", path)
	}

	switch {
	case info.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return "", fmt.Errorf("failed to list %s: %w", path, err)
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		return strings.Join(names, "\n"), nil
	case info.Mode().IsRegular():
		if info.Size() > maxViewBytes {
			return "", domainerrors.InvalidInputf("file %s is %d bytes, too large to view inline", path, info.Size())
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(content), nil
	default:
		return "", domainerrors.InvalidInputf("%s is neither a regular file nor a folder", path)
	}
}
