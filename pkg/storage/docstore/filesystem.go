package docstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type filesystemClient struct {
	dir string
}

func newFilesystemClient(dir string) (Client, error) {
	if dir == "" {
		return nil, fmt.Errorf("filesystem store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &filesystemClient{dir: dir}, nil
}

// Put writes the document with O_EXCL so an (astronomically unlikely) name
// collision surfaces as an error instead of an overwrite.
func (f *filesystemClient) Put(ctx context.Context, name string, reader io.Reader, size int64) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(f.dir, name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

func (f *filesystemClient) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return os.Remove(filepath.Join(f.dir, name))
}

func (f *filesystemClient) Close() error {
	return nil
}

// validName rejects anything that would escape the flat upload directory.
func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("invalid storage name %q", name)
	}
	return nil
}
