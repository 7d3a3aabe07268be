package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/crimson-sun/plantrace/internal/output"
)

// Output writes each artifact's document to stdout, one per line unless pretty.
type Output struct {
	mu     sync.Mutex
	w      io.Writer
	pretty bool
}

// New creates a new stdout Output with optional pretty-printed JSON.
func New(pretty bool) *Output {
	return &Output{w: os.Stdout, pretty: pretty}
}

func (o *Output) Write(_ context.Context, a output.Artifact) error {
	data, err := output.Marshal(a, o.pretty)
	if err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
