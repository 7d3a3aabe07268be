package output

import (
	"context"

	"github.com/crimson-sun/plantrace/internal/output/chrome"
)

// Artifact is one named export, e.g. "trace" or "trace-actions".
type Artifact struct {
	Name string
	Doc  chrome.Document
}

// Output defines the interface for export destinations.
type Output interface {
	Write(ctx context.Context, a Artifact) error
	Close() error
}
