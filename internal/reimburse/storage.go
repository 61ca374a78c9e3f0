package reimburse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zombor/reimburse/internal/organize"
)

// Storage defines the interface for file storage operations. Paths are
// relative to the storage root.
type Storage interface {
	// Save writes a file, creating parent directories, and returns its path
	Save(path string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(path string) ([]byte, error)

	// Delete removes a file or a whole directory
	Delete(path string) error

	// Exists reports whether something is stored at path
	Exists(path string) bool

	// Place copies or moves source to destination
	Place(ctx context.Context, source, destination string, mode organize.Mode) error

	// FS exposes a stored directory read-only
	FS(dir string) (fs.FS, error)
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

func (l *LocalStorage) resolve(path string) (string, error) {
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("path escapes storage: %s", path)
	}
	return filepath.Join(l.basePath, path), nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(path string, data []byte) (string, error) {
	fullPath, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	fullPath, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file or directory from local storage
func (l *LocalStorage) Delete(path string) error {
	fullPath, err := l.resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(fullPath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Exists implements Storage
func (l *LocalStorage) Exists(path string) bool {
	fullPath, err := l.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// FS implements Storage
func (l *LocalStorage) FS(dir string) (fs.FS, error) {
	fullPath, err := l.resolve(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("opening directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	return os.DirFS(fullPath), nil
}

// Place copies or moves a file into the storage. source may be absolute,
// which lets a batch pull files from outside the root; destination must
// stay inside it.
func (l *LocalStorage) Place(ctx context.Context, source, destination string, mode organize.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src := source
	if !filepath.IsAbs(src) {
		var err error
		if src, err = l.resolve(source); err != nil {
			return err
		}
	}
	dst, err := l.resolve(destination)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination exists: %s", destination)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	if mode == organize.ModeMove {
		if err := os.Rename(src, dst); err == nil {
			return nil
		} else if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("moving file: %w", err)
		}
		// Cross-device rename: copy then remove
		if err := copyFile(src, dst); err != nil {
			return err
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("removing source: %w", err)
		}
		return nil
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing destination: %w", err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
