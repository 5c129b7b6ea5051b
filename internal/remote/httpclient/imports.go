package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"envanter/internal/apperr"
	"envanter/pkg/importer"
)

// ImportExcel uploads an .xlsx item list to POST /imports/excel. When the
// server rejects the file the returned summary still carries the row errors
// it reported. Admin only.
func (c *Client) ImportExcel(ctx context.Context, filename string, r io.Reader, dryRun bool) (importer.ImportSummary, error) {
	const op = "remote.ImportExcel"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return importer.ImportSummary{}, apperr.Transport(op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return importer.ImportSummary{}, apperr.Transport(op, fmt.Errorf("read %s: %w", filename, err))
	}
	if dryRun {
		_ = mw.WriteField("dry_run", "true")
	}
	if err := mw.Close(); err != nil {
		return importer.ImportSummary{}, apperr.Transport(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/imports/excel", &buf)
	if err != nil {
		return importer.ImportSummary{}, apperr.Transport(op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("import upload failed", "file", filename, "error", err)
		return importer.ImportSummary{}, apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	var body struct {
		errorBody
		Data importer.ImportSummary `json:"data"`
	}
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body)

	if resp.StatusCode >= 300 {
		se := &statusError{Status: resp.StatusCode, Code: body.Code, Message: body.Error}
		if decodeErr != nil {
			se.Message = http.StatusText(resp.StatusCode)
		}
		return body.Data, apperr.New(kindFor(se), op, se)
	}
	if decodeErr != nil {
		return importer.ImportSummary{}, apperr.Transport(op, fmt.Errorf("decode response: %w", decodeErr))
	}
	return body.Data, nil
}
