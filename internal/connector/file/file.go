package file

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/crimson-sun/plantrace/internal/connector"
)

func init() {
	connector.Register("file", func() connector.Connector {
		return &Connector{}
	})
}

// Connector reads a log file from disk.
type Connector struct{}

func (c *Connector) Open(_ context.Context, cfg connector.Config) (io.ReadCloser, error) {
	if cfg.Input == "" {
		return nil, errors.New("file connector: no input path")
	}
	return os.Open(cfg.Input)
}
