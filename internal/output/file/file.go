package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crimson-sun/plantrace/internal/output"
)

const defaultBufSize = 64 * 1024 // 64KB

// Option configures a file Output.
type Option func(*Output)

// WithPretty indents the written JSON.
func WithPretty(pretty bool) Option {
	return func(o *Output) { o.pretty = pretty }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// Output writes each artifact to <dir>/<name>.json. Files are written to a
// temporary name and renamed into place, so readers never see a partial document.
type Output struct {
	mu      sync.Mutex
	dir     string
	pretty  bool
	bufSize int
	written []string
}

// New creates a file output rooted at dir, creating it if needed.
func New(dir string, opts ...Option) (*Output, error) {
	o := &Output{dir: dir, bufSize: defaultBufSize}
	for _, opt := range opts {
		opt(o)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file output: mkdir %s: %w", dir, err)
	}
	return o, nil
}

// Path returns where an artifact name is written.
func (o *Output) Path(name string) string {
	return filepath.Join(o.dir, name+".json")
}

// Write encodes the artifact and replaces its file.
func (o *Output) Write(_ context.Context, a output.Artifact) error {
	data, err := output.Marshal(a, o.pretty)
	if err != nil {
		return fmt.Errorf("file output: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	path := o.Path(a.Name)
	tmp, err := os.CreateTemp(o.dir, "."+a.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("file output: create %s: %w", path, err)
	}
	w := bufio.NewWriterSize(tmp, o.bufSize)
	if _, err := w.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("file output: write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("file output: flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file output: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file output: rename %s: %w", path, err)
	}
	o.written = append(o.written, path)
	return nil
}

// Written returns the paths written so far, in order.
func (o *Output) Written() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.written...)
}

// Close is a no-op; every Write completes its file.
func (o *Output) Close() error {
	return nil
}
