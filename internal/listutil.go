package internal

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"envanter/internal/listing"
)

// parseListParams parses limit, offset, q, and sort from the request
// Defaults: limit=50 (max 200), offset=0
func parseListParams(r *http.Request) listing.Params {
	values := r.URL.Query()

	limit := listing.DefaultLimit
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > listing.MaxLimit {
				v = listing.MaxLimit
			}
			limit = v
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	return listing.Params{
		Limit:  limit,
		Offset: offset,
		Q:      strings.TrimSpace(values.Get("q")),
		Sort:   strings.TrimSpace(values.Get("sort")),
	}
}

// sendListResponse writes the {data, meta} envelope.
func sendListResponse[T any](w http.ResponseWriter, data []T, total int, p listing.Params) {
	if data == nil {
		data = []T{}
	}
	writeJSON(w, http.StatusOK, listing.Response[T]{
		Data: data,
		Meta: listing.Meta{Total: total, Limit: p.Limit, Offset: p.Offset},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
