package stdin

import (
	"context"
	"io"
	"os"

	"github.com/crimson-sun/plantrace/internal/connector"
)

func init() {
	connector.Register("stdin", func() connector.Connector {
		return &Connector{r: os.Stdin}
	})
}

// Connector reads a log piped into the process.
type Connector struct {
	r io.Reader
}

func (c *Connector) Open(_ context.Context, _ connector.Config) (io.ReadCloser, error) {
	return io.NopCloser(c.r), nil
}
