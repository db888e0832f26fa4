package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"catchcore/internal/blob"
	"catchcore/internal/core"
)

// Format selects the documents written per report.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatBoth Format = "both"
)

// ParseFormat validates a format name; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatBoth:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

const keyPrefix = "reports"

var _ core.OutcomePublisher = (*Publisher)(nil)

// Publisher stores control reports under reports/<operationID>/<reportID>.<ext>.
type Publisher struct {
	store  blob.Store
	format Format
	logger core.Logger
	newID  func() string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithFormat selects the documents written per report.
func WithFormat(f Format) Option {
	return func(p *Publisher) {
		if f != "" {
			p.format = f
		}
	}
}

// WithLogger sets the publisher logger.
func WithLogger(l core.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithIDGenerator replaces the uuid report id generator.
func WithIDGenerator(fn func() string) Option {
	return func(p *Publisher) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// NewPublisher writes reports to store.
func NewPublisher(store blob.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, format: FormatJSON, logger: discardLogger{}, newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Publish implements core.OutcomePublisher.
func (p *Publisher) Publish(ctx context.Context, outcome core.ControlOutcome) error {
	_, err := p.PublishReport(ctx, outcome)
	return err
}

// PublishReport stores the report of outcome and returns the written blobs.
func (p *Publisher) PublishReport(ctx context.Context, outcome core.ControlOutcome) ([]blob.Info, error) {
	if outcome.OperationID == "" {
		return nil, errors.New("report: operation id required")
	}
	r := New(p.newID(), outcome)
	meta := map[string]string{
		"operation-id": r.OperationID,
		"program":      r.Program,
		"state":        r.State,
	}

	var infos []blob.Info
	write := func(ext, contentType string, render func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return fmt.Errorf("render %s report: %w", ext, err)
		}
		key := Key(r.OperationID, r.ID, ext)
		info, err := p.store.Put(ctx, key, &buf, blob.PutOptions{ContentType: contentType, Metadata: meta})
		if err != nil {
			return fmt.Errorf("store report %s: %w", key, err)
		}
		infos = append(infos, info)
		p.logger.Info("control report published", "key", key, "state", r.State, "errors", len(r.Errors))
		return nil
	}
	if p.format == FormatJSON || p.format == FormatBoth {
		if err := write("json", "application/json", r.WriteJSON); err != nil {
			return infos, err
		}
	}
	if p.format == FormatCSV || p.format == FormatBoth {
		if err := write("csv", "text/csv", r.WriteCSV); err != nil {
			return infos, err
		}
	}
	return infos, nil
}

// Key renders the blob key of a report document.
func Key(operationID, reportID, ext string) string {
	return path.Join(keyPrefix, operationID, reportID+"."+ext)
}

// List returns the report documents stored for an operation.
func List(ctx context.Context, store blob.Store, operationID string) ([]blob.Info, error) {
	return store.List(ctx, keyPrefix+"/"+operationID+"/")
}

// Load reads back a JSON report.
func Load(ctx context.Context, store blob.Store, key string) (ControlReport, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return ControlReport{}, err
	}
	defer rc.Close()
	var r ControlReport
	if err := json.NewDecoder(rc).Decode(&r); err != nil {
		return ControlReport{}, fmt.Errorf("decode report %s: %w", key, err)
	}
	return r, nil
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}
