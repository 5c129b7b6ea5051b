package listing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderBy(t *testing.T) {
	allowed := map[string]string{"id": "p.id", "name": "p.name", "quantity": "p.quantity"}

	tests := []struct {
		name string
		sort string
		want string
	}{
		{"default", "", " ORDER BY p.id ASC"},
		{"single", "name", " ORDER BY p.name ASC"},
		{"desc and asc", "-quantity,name", " ORDER BY p.quantity DESC, p.name ASC"},
		{"unknown keys dropped", "password_hash;drop,name", " ORDER BY p.name ASC"},
		{"only unknown", "nope", " ORDER BY p.id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderBy(tt.sort, allowed))
		})
	}
}

func TestSortSliceAndPage(t *testing.T) {
	type row struct {
		name string
		qty  int
	}
	rows := []row{{"b", 1}, {"a", 3}, {"c", 3}}
	cmps := map[string]Compare[row]{
		"name":     func(a, b row) int { return strings.Compare(a.name, b.name) },
		"quantity": func(a, b row) int { return a.qty - b.qty },
	}

	SortSlice(rows, ParseSort("-quantity,name", nil), cmps)
	assert.Equal(t, []row{{"a", 3}, {"c", 3}, {"b", 1}}, rows)

	assert.Equal(t, []row{{"c", 3}}, Page(rows, Params{Offset: 1, Limit: 1}))
	assert.Len(t, Page(rows, Params{}), 3)
	assert.Empty(t, Page(rows, Params{Offset: 10}))
}
