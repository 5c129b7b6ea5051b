package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"envanter/internal/auth"
	"envanter/pkg/importer"
)

const (
	defaultMaxUpload = 20 << 20
	defaultMaxErrors = 50
)

// ImportsHandler serves POST /imports/excel.
type ImportsHandler struct {
	Sink       importer.Sink
	MaxBytes   int64
	DefaultMap string // empty: the importer's embedded mapping
	Logger     *slog.Logger
}

func NewImportsHandler(sink importer.Sink, logger *slog.Logger) *ImportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportsHandler{Sink: sink, MaxBytes: defaultMaxUpload, Logger: logger}
}

// uploadForm is one parsed import request.
type uploadForm struct {
	file   multipart.File
	name   string
	dryRun bool
	limit  int
}

func (h *ImportsHandler) parse(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/form-data" {
		return nil, errors.New("content-type must be multipart/form-data")
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	up := &uploadForm{dryRun: r.FormValue("dry_run") == "true", limit: defaultMaxErrors}
	if n, err := strconv.Atoi(r.FormValue("max_errors")); err == nil && n > 0 {
		up.limit = n
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".xlsx") {
		f.Close()
		return nil, errors.New("only .xlsx files are accepted")
	}
	up.file, up.name = f, hdr.Filename
	return up, nil
}

// UploadExcel imports an item workbook. Row errors abort the whole import
// and come back with the per-sheet summary.
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	up, err := h.parse(w, r)
	if err != nil {
		auth.SendErrorResponse(w, err.Error(), "VALIDATION_FAILED", http.StatusBadRequest)
		return
	}
	defer up.file.Close()

	userID := auth.UserIDFromContext(r.Context())
	log := h.Logger.With("file", up.name, "user_id", userID, "dry_run", up.dryRun)

	sum, err := importer.ImportExcel(r.Context(), h.Sink, up.file, importer.ImportOptions{
		MappingPath: h.DefaultMap,
		DryRun:      up.dryRun,
		MaxErrors:   up.limit,
		CreatedBy:   userID,
	})
	switch {
	case err != nil:
		log.Warn("excel import failed", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, failure{Error: err.Error(), Code: "IMPORT_FAILED", Data: sum})
	case sum.Errors > 0:
		log.Info("excel import rejected", "row_errors", sum.Errors)
		writeJSON(w, http.StatusUnprocessableEntity, failure{
			Error: "some rows could not be read; nothing was imported",
			Code:  "IMPORT_ROW_ERRORS",
			Data:  sum,
		})
	default:
		log.Info("excel import", "rows", sum.Rows, "inserted", sum.Inserted, "updated", sum.Updated)
		writeJSON(w, http.StatusOK, success{Data: sum, Meta: meta{Timestamp: time.Now().UTC()}})
	}
}

type failure struct {
	Error string                 `json:"error"`
	Code  string                 `json:"code"`
	Data  importer.ImportSummary `json:"data"`
}

type meta struct {
	Timestamp time.Time `json:"timestamp"`
}

type success struct {
	Data importer.ImportSummary `json:"data"`
	Meta meta                   `json:"meta"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
