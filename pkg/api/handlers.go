package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

type handler struct {
	session *Session
}

type addStepRequest struct {
	Kind string `json:"kind"`
}

type setFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListTables handles GET /api/tables.
func (h *handler) ListTables(w http.ResponseWriter, _ *http.Request) {
	tables := h.session.Tables()
	out := make([]tableSummary, 0, len(tables))
	for _, t := range tables {
		out = append(out, summarize(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTable handles GET /api/tables/{name}?limit=N.
func (h *handler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	t, ok := h.session.Table(name)
	if !ok {
		writeError(w, http.StatusNotFound, "table not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, newTableView(t, limit))
}

// UploadTables handles POST /api/tables with one or more multipart "file" parts.
func (h *handler) UploadTables(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	out := make([]tableSummary, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		t, err := h.session.Upload(fh.Filename, data)
		if err != nil {
			log.Warn().Err(err).Str("file", fh.Filename).Msg("upload rejected")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Info().Str("table", t.Name).Int("rows", t.Len()).Msg("table uploaded")
		out = append(out, summarize(t))
	}
	writeJSON(w, http.StatusCreated, out)
}

// ListSteps handles GET /api/steps.
func (h *handler) ListSteps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Steps())
}

// AddStep handles POST /api/steps.
func (h *handler) AddStep(w http.ResponseWriter, r *http.Request) {
	var req addStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind, err := steps.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.session.AppendStep(kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// DeleteStep handles DELETE /api/steps/{index}.
func (h *handler) DeleteStep(w http.ResponseWriter, r *http.Request) {
	index, ok := stepIndex(w, r)
	if !ok {
		return
	}
	if err := h.session.DeleteStep(index); err != nil {
		writeStepError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetField handles PUT /api/steps/{index}/fields.
func (h *handler) SetField(w http.ResponseWriter, r *http.Request) {
	index, ok := stepIndex(w, r)
	if !ok {
		return
	}
	var req setFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	view, err := h.session.SetField(index, req.Field, req.Value)
	if err != nil {
		writeStepError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetKind handles PUT /api/steps/{index}/kind.
func (h *handler) SetKind(w http.ResponseWriter, r *http.Request) {
	index, ok := stepIndex(w, r)
	if !ok {
		return
	}
	var req addStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind, err := steps.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.session.SetKind(index, kind)
	if err != nil {
		writeStepError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Form handles GET /api/steps/{index}/form.
func (h *handler) Form(w http.ResponseWriter, r *http.Request) {
	index, ok := stepIndex(w, r)
	if !ok {
		return
	}
	form, err := h.session.Form(index)
	if err != nil {
		writeStepError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formView{Fields: form.Fields, SQL: form.SQL})
}

// Run handles POST /api/run. Step failures are part of the report, not HTTP errors.
func (h *handler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.session.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "run interrupted: "+err.Error())
		return
	}
	log.Info().Str("run", report.ID.String()).Int("steps", len(report.Steps)).Int("failed", report.Failed()).Msg("pipeline run")
	writeJSON(w, http.StatusOK, newRunView(report))
}

// LastRun handles GET /api/run.
func (h *handler) LastRun(w http.ResponseWriter, _ *http.Request) {
	report := h.session.LastReport()
	if report == nil {
		writeError(w, http.StatusNotFound, "pipeline has not been run")
		return
	}
	writeJSON(w, http.StatusOK, newRunView(report))
}

// SQL handles GET /api/sql.
func (h *handler) SQL(w http.ResponseWriter, _ *http.Request) {
	stmts, chained := h.session.SQL()
	writeJSON(w, http.StatusOK, sqlView{Steps: stmts, Chained: chained})
}

// Columns handles GET /api/columns.
func (h *handler) Columns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Columns())
}

// Definition handles GET /api/definition and returns the step list as YAML.
func (h *handler) Definition(w http.ResponseWriter, _ *http.Request) {
	def, err := h.session.Definition()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, err := def.Marshal()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

func stepIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "step index must be an integer")
		return 0, false
	}
	return index, true
}

// writeStepError maps a missing step to 404 and everything else to 400.
func writeStepError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrNoSuchStep) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
