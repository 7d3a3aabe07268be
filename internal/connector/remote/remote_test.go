package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/plantrace/internal/connector"
	"github.com/crimson-sun/plantrace/internal/connector/httpclient"
)

func TestDownloadsLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runs/42.log", r.URL.Path)
		assert.Equal(t, "raw", r.URL.Query().Get("format"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"time":"2025-03-01T10:00:00Z","scope":"/planner","message":"APPEND PLAN"}` + "\n"))
	}))
	defer srv.Close()

	b, err := connector.Read(context.Background(), &Connector{}, connector.Config{
		Provider: "http",
		Input:    srv.URL + "/runs/42.log?format=raw",
		APIKey:   "tok",
	})
	require.NoError(t, err)
	require.Len(t, b.Records, 1)
	assert.Equal(t, "APPEND PLAN", b.Records[0].String("message"))
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Connector{opts: []httpclient.Option{httpclient.WithBackoff(time.Millisecond)}}
	_, err := connector.Read(context.Background(), c, connector.Config{Provider: "http", Input: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestRejectsBadInput(t *testing.T) {
	c := &Connector{}
	_, err := c.Open(context.Background(), connector.Config{})
	assert.Error(t, err)
	_, err = c.Open(context.Background(), connector.Config{Input: "/var/log/planner.log"})
	assert.Error(t, err)
}
