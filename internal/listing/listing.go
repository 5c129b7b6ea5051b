// Package listing holds the paging and sorting conventions shared by the HTTP
// list endpoints, the stores behind them, and the client-side table queries.
package listing

import (
	"sort"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Params holds common query parameters for list endpoints
type Params struct {
	Limit  int
	Offset int
	Q      string
	Sort   string
}

// All asks a store for every row.
var All = Params{}

// SortKey is one element of a sort parameter.
type SortKey struct {
	Field string
	Desc  bool
}

// ParseSort splits a comma-separated sort parameter. A leading '-' means
// descending. Keys not in allowed are dropped when allowed is non-nil.
func ParseSort(sortParam string, allowed map[string]string) []SortKey {
	parts := strings.Split(sortParam, ",")
	keys := make([]SortKey, 0, len(parts))
	for _, raw := range parts {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(s, "-") {
			desc = true
			s = strings.TrimPrefix(s, "-")
		}
		if allowed != nil {
			col, ok := allowed[s]
			if !ok {
				continue
			}
			s = col
		}
		keys = append(keys, SortKey{Field: s, Desc: desc})
	}
	return keys
}

// OrderBy builds a safe ORDER BY clause using a whitelist of allowed keys.
// allowed maps incoming sort keys (e.g., "name") to actual column identifiers.
// Returns a string starting with " ORDER BY ...". Defaults to the "id" column
// ascending.
func OrderBy(sortParam string, allowed map[string]string) string {
	keys := ParseSort(sortParam, allowed)
	if len(keys) == 0 {
		if col, ok := allowed["id"]; ok {
			return " ORDER BY " + col + " ASC"
		}
		return " ORDER BY id ASC"
	}
	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Desc {
			clauses = append(clauses, k.Field+" DESC")
		} else {
			clauses = append(clauses, k.Field+" ASC")
		}
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// Compare orders two rows for one sort key; it returns <0, 0 or >0.
type Compare[T any] func(a, b T) int

// SortSlice stably sorts rows by keys, looking each key's comparison up in
// cmps. Unknown keys are ignored; with no usable key the order is unchanged.
func SortSlice[T any](rows []T, keys []SortKey, cmps map[string]Compare[T]) {
	usable := keys[:0:0]
	for _, k := range keys {
		if _, ok := cmps[k.Field]; ok {
			usable = append(usable, k)
		}
	}
	if len(usable) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range usable {
			c := cmps[k.Field](rows[i], rows[j])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Page returns the window [offset, offset+limit) of rows. A zero limit means
// no upper bound.
func Page[T any](rows []T, p Params) []T {
	if p.Offset >= len(rows) {
		return []T{}
	}
	if p.Offset > 0 {
		rows = rows[p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(rows) {
		rows = rows[:p.Limit]
	}
	return rows
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Meta describes the window a list response covers.
type Meta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Response is the envelope every list endpoint returns.
type Response[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}
