package core

// preview.go reports how a request would be read before it is validated:
// which raw headers resolve to which expected columns, which required
// columns are missing, and a sample of rows failing the per-row rules.
// Timeline and cascade checks are not run and nothing is recorded.

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// maxErrorSamples caps the failing rows returned per component.
const maxErrorSamples = 20

// ColumnPreview is how one raw header resolved.
type ColumnPreview struct {
	Header   string  `json:"header"`
	Resolved string  `json:"resolved"`
	Score    float64 `json:"score"`
	Matched  bool    `json:"matched"`
}

// ErrorPreview is a row failing the per-row rules.
type ErrorPreview struct {
	LineNumber int               `json:"lineNumber"`
	Values     map[string]string `json:"values"`
	Errors     []string          `json:"errors"`
}

// ComponentPreview is the preview of one source component.
type ComponentPreview struct {
	Name            string          `json:"name"`
	Rows            int             `json:"rows"`
	ErrorRows       int             `json:"errorRows"`
	Columns         []ColumnPreview `json:"columns"`
	Unresolved      []string        `json:"unresolved,omitempty"`
	MissingRequired []string        `json:"missingRequired,omitempty"`
	ErrorSamples    []ErrorPreview  `json:"errorSamples"`
}

// PreviewResponse is the complete response of a preview.
type PreviewResponse struct {
	Profile          string             `json:"profile"`
	Components       []ComponentPreview `json:"components"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
}

// Preview resolves headers and runs the per-row rules over the request.
func (s *Service) Preview(ctx context.Context, req Request) (*PreviewResponse, error) {
	ctx, span := s.tracer.Start(ctx, "validate.preview")
	defer span.End()

	startTime := time.Now()

	engine, profile, err := s.engineFor(req)
	if err != nil {
		return nil, s.fail(span, profile, err)
	}
	if req.TotalRecords() == 0 {
		return nil, s.fail(span, profile, ErrNoInput)
	}

	if err := s.acquire(ctx); err != nil {
		return nil, s.fail(span, profile, err)
	}
	defer s.release()

	resp := &PreviewResponse{Profile: profile}
	for _, c := range req.Components {
		resp.Components = append(resp.Components, engine.previewComponent(c))
	}
	resp.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	span.SetAttributes(
		attribute.String("run.profile", profile),
		attribute.Int("components", len(resp.Components)),
	)
	return resp, nil
}

func (e *Engine) previewComponent(c ComponentInput) ComponentPreview {
	rows, res := e.normalizer.Normalize(c, 0)

	expected := make(map[string]bool, len(e.normalizer.expected))
	for _, name := range e.normalizer.expected {
		expected[strings.ToLower(name)] = true
	}

	p := ComponentPreview{
		Name:         strings.TrimSpace(c.Name),
		Rows:         len(rows),
		Columns:      make([]ColumnPreview, len(res.Columns)),
		Unresolved:   res.Unresolved,
		ErrorSamples: []ErrorPreview{},
	}
	present := make(map[string]bool, len(res.Columns))
	for i, col := range res.Columns {
		matched := expected[strings.ToLower(col)]
		cp := ColumnPreview{Header: res.Header[i], Resolved: col, Matched: matched}
		if matched {
			cp.Score = e.normalizer.matcher.Score(col, res.Header[i])
		}
		p.Columns[i] = cp
		present[strings.ToLower(col)] = true
	}
	for _, col := range e.rules.set.Required {
		if !present[strings.ToLower(col)] {
			p.MissingRequired = append(p.MissingRequired, col)
		}
	}

	for _, row := range e.field.Validate(rows) {
		if !row.Failed() {
			continue
		}
		p.ErrorRows++
		if len(p.ErrorSamples) >= maxErrorSamples {
			continue
		}
		reasons := row.Reasons()
		msgs := make([]string, len(reasons))
		for i, r := range reasons {
			msgs[i] = r.String()
		}
		p.ErrorSamples = append(p.ErrorSamples, ErrorPreview{
			LineNumber: row.Line,
			Values:     row.Map(),
			Errors:     msgs,
		})
	}
	return p
}
