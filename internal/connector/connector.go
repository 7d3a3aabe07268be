package connector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/plantrace/internal/model"
)

// maxLineSize bounds one NDJSON record. Planner lines that print whole plans
// run to a few hundred kilobytes.
const maxLineSize = 16 * 1024 * 1024

// Connector opens a newline-delimited JSON log source.
type Connector interface {
	Open(ctx context.Context, cfg Config) (io.ReadCloser, error)
}

// Config holds source settings.
type Config struct {
	Provider string
	Input    string // file path or URL
	APIKey   string // bearer token for remote sources
	Limit    int    // stop after this many records; 0 reads everything
	Extra    map[string]string
}

// Batch is a decoded source.
type Batch struct {
	Records   []model.LogRecord
	Lines     int // physical lines read, blank ones included
	Malformed int // lines that were not a JSON object
}

// normalized lists the text fields rewritten to NFC so the classifier's
// patterns see one encoding of each character.
var normalized = []string{"message", "scope"}

// Read opens the source and decodes it.
func Read(ctx context.Context, c Connector, cfg Config) (Batch, error) {
	rc, err := c.Open(ctx, cfg)
	if err != nil {
		return Batch{}, fmt.Errorf("connector %s: open %s: %w", cfg.Provider, cfg.Input, err)
	}
	defer rc.Close()

	b, err := Decode(ctx, rc, cfg.Limit)
	if err != nil {
		return b, fmt.Errorf("connector %s: read %s: %w", cfg.Provider, cfg.Input, err)
	}
	return b, nil
}

// Decode reads NDJSON records in order. Lines that fail to decode are counted,
// logged and skipped. Blank lines are ignored.
func Decode(ctx context.Context, r io.Reader, limit int) (Batch, error) {
	var b Batch
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		b.Lines++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(line, &fields); err != nil || fields == nil {
			b.Malformed++
			slog.Warn("skipping malformed line", "line", b.Lines, "error", err)
			continue
		}
		for _, key := range normalized {
			if s, ok := fields[key].(string); ok {
				fields[key] = norm.NFC.String(s)
			}
		}
		b.Records = append(b.Records, model.LogRecord{Line: b.Lines, Fields: fields})
		if limit > 0 && len(b.Records) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return b, err
	}
	return b, nil
}
