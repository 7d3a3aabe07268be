package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/plantrace/internal/connector"
)

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.log")
	require.NoError(t, os.WriteFile(path, []byte(`{"time":"2025-03-01T10:00:00Z","scope":"/planner","message":"REPLACE PLAN"}`+"\n"), 0o644))

	ctor, err := connector.Get("file")
	require.NoError(t, err)
	b, err := connector.Read(context.Background(), ctor(), connector.Config{Provider: "file", Input: path})
	require.NoError(t, err)
	require.Len(t, b.Records, 1)
	assert.Equal(t, "REPLACE PLAN", b.Records[0].String("message"))
}

func TestMissingFile(t *testing.T) {
	_, err := connector.Read(context.Background(), &Connector{}, connector.Config{Provider: "file", Input: filepath.Join(t.TempDir(), "nope.log")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = (&Connector{}).Open(context.Background(), connector.Config{})
	assert.Error(t, err)
}
