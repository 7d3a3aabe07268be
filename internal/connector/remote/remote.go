// Package remote fetches a log over HTTP(S), e.g. from an object store or a
// log collector's download endpoint.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/crimson-sun/plantrace/internal/connector"
	"github.com/crimson-sun/plantrace/internal/connector/httpclient"
)

func init() {
	connector.Register("http", func() connector.Connector {
		return &Connector{}
	})
}

// Connector downloads the log named by cfg.Input, authenticating with
// cfg.APIKey when set.
type Connector struct {
	opts []httpclient.Option
}

func (c *Connector) Open(ctx context.Context, cfg connector.Config) (io.ReadCloser, error) {
	if cfg.Input == "" {
		return nil, errors.New("http connector: no input URL")
	}
	u, err := url.Parse(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("http connector: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http connector: unsupported scheme %q", u.Scheme)
	}
	query := u.Query()
	u.RawQuery = ""

	body, err := httpclient.New(u.String(), cfg.APIKey, c.opts...).Get(ctx, "", query)
	if err != nil {
		return nil, fmt.Errorf("http connector: %w", err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}
