package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/hdlcheck/internal/core"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// genericFileFields are form field names that carry no component name.
var genericFileFields = map[string]bool{
	"file":    true,
	"files":   true,
	"files[]": true,
}

// validateRequest is the JSON body of POST /api/validate.
type validateRequest struct {
	core.Request
	LegalEmployerCheck bool `json:"legalEmployerCheck,omitempty"`
}

// handleValidate validates components posted as JSON.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.runValidation(w, r, req.Request, req.LegalEmployerCheck)
}

// handleValidateCSV validates CSV files posted as multipart form data, one
// file per component. The component name is the form field name, or the
// file's base name when the field is a generic "file"/"files".
func (s *Server) handleValidateCSV(w http.ResponseWriter, r *http.Request) {
	profile := chi.URLParam(r, "profile")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Validation.MaxBodySize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.respondError(w, r, fmt.Errorf("request body too large: %w", err))
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: invalid request body: %v", errInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	delimiter := ','
	if d := r.FormValue("delimiter"); d != "" {
		if utf8.RuneCountInString(d) != 1 {
			s.respondError(w, r, fmt.Errorf("%w: invalid csv delimiter %q", errInvalidInput, d))
			return
		}
		delimiter, _ = utf8.DecodeRuneInString(d)
	}

	components, err := readCSVComponents(r.MultipartForm, delimiter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	legal, _ := strconv.ParseBool(r.FormValue("legalEmployerCheck"))
	s.runValidation(w, r, core.Request{Profile: profile, Components: components}, legal)
}

// runValidation runs the request and, when asked, an independent legal
// employer check over the same input at the same time.
func (s *Server) runValidation(w http.ResponseWriter, r *http.Request, req core.Request, legalEmployerCheck bool) {
	ctx := WithRequestMetadata(r.Context(), r)

	var (
		result *core.Result
		report *core.LegalEmployerReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result, err = s.service.Validate(gctx, req)
		return err
	})
	if legalEmployerCheck {
		g.Go(func() error {
			var err error
			report, err = s.service.CheckLegalEmployer(gctx, req)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := toValidateResponse(result)
	if report != nil {
		resp.LegalEmployer = toLegalEmployerResponse(report)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLegalEmployer runs only the cross-component legal employer check.
func (s *Server) handleLegalEmployer(w http.ResponseWriter, r *http.Request) {
	var req core.Request
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.service.CheckLegalEmployer(WithRequestMetadata(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLegalEmployerResponse(report))
}

// handlePreview shows how headers resolve and which rows fail the per-row
// rules, without running a full validation.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req core.Request
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	resp, err := s.service.Preview(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readCSVComponents parses every uploaded file, in field name order.
func readCSVComponents(form *multipart.Form, delimiter rune) ([]core.ComponentInput, error) {
	if form == nil || len(form.File) == 0 {
		return nil, fmt.Errorf("%w: invalid request body: no files uploaded", errInvalidInput)
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var components []core.ComponentInput
	for _, field := range fields {
		for _, fh := range form.File[field] {
			name := componentName(field, fh.Filename)
			comp, err := readCSVFile(name, fh, delimiter)
			if err != nil {
				return nil, err
			}
			components = append(components, comp)
		}
	}
	return components, nil
}

func readCSVFile(name string, fh *multipart.FileHeader, delimiter rune) (core.ComponentInput, error) {
	f, err := fh.Open()
	if err != nil {
		return core.ComponentInput{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return parseCSV(name, f, delimiter)
}

// componentName derives a component name from a form field and file name.
func componentName(field, filename string) string {
	if !genericFileFields[strings.ToLower(field)] {
		return field
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// parseCSV reads one component file.
func parseCSV(name string, r io.Reader, delimiter rune) (core.ComponentInput, error) {
	return core.ReadComponentCSV(name, r, delimiter)
}
