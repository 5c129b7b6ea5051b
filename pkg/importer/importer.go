// Package importer reads item lists from .xlsx workbooks. Column headers are
// matched through a YAML mapping; the default mapping accepts the headers the
// inventory's own Excel export writes, so an exported sheet imports cleanly.
package importer

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"

	"envanter/internal/models"
	"envanter/internal/store"
)

//go:embed default_mapping.yaml
var defaultMapping []byte

// Fields an alias may resolve to.
const (
	FieldName         = "name"
	FieldBrand        = "brand"
	FieldModel        = "model"
	FieldCategory     = "category"
	FieldLocation     = "location"
	FieldStatus       = "status"
	FieldSerialNumber = "serial_number"
	FieldBarcode      = "barcode"
	FieldDescription  = "description"
	FieldQuantity     = "quantity"
	FieldPhotoURL     = "photo_url"
)

var knownFields = map[string]bool{
	FieldName: true, FieldBrand: true, FieldModel: true, FieldCategory: true,
	FieldLocation: true, FieldStatus: true, FieldSerialNumber: true, FieldBarcode: true,
	FieldDescription: true, FieldQuantity: true, FieldPhotoURL: true,
}

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	MappingPath string // empty uses the embedded default
	DryRun      bool
	MaxErrors   int // default 50
	CreatedBy   string
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name    string     `json:"name"`
	Rows    int        `json:"rows"`
	Skipped int        `json:"skipped"`
	Errors  int        `json:"errors"`
	Samples []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Rows              int            `json:"rows"`
	Inserted          int            `json:"inserted"`
	Updated           int            `json:"updated"`
	Skipped           int            `json:"skipped"`
	Errors            int            `json:"errors"`
	CategoriesCreated []string       `json:"categories_created,omitempty"`
	LocationsCreated  []string       `json:"locations_created,omitempty"`
	Sheets            []SheetSummary `json:"sheets"`
	DryRun            bool           `json:"dry_run"`
}

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version  int                    `yaml:"version"`
	Defaults Defaults               `yaml:"defaults"`
	Sheets   map[string]SheetConfig `yaml:"sheets"`
}

// Defaults fill columns a row leaves empty.
type Defaults struct {
	Status   models.ItemStatus `yaml:"status"`
	Quantity int               `yaml:"quantity"`
}

// SheetConfig maps item fields to the headers that may carry them.
type SheetConfig struct {
	NaturalKey string              `yaml:"natural_key"`
	Aliases    map[string][]string `yaml:"aliases"`
	Types      map[string]string   `yaml:"types"`
}

// Sink is where parsed rows go. store.Store satisfies it.
type Sink interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
	CreateLocation(ctx context.Context, name string) (*models.Location, error)
	ImportItems(ctx context.Context, reqs []models.CreateItemRequest) (store.ImportResult, error)
}

// Row is one parsed item row with its reference data still by name.
type Row struct {
	Sheet    string
	Line     int
	Item     models.CreateItemRequest
	Category string
	Location string
}

// LoadMapping reads a mapping file; an empty path returns the default.
func LoadMapping(path string) (*MappingConfig, error) {
	data := defaultMapping
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	return ParseMapping(data)
}

// ParseMapping decodes and checks a YAML mapping.
func ParseMapping(data []byte) (*MappingConfig, error) {
	var m MappingConfig
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(m.Sheets) == 0 {
		return nil, fmt.Errorf("mapping has no sheets")
	}
	for name, sc := range m.Sheets {
		for field := range sc.Aliases {
			if !knownFields[field] {
				return nil, fmt.Errorf("sheet %q: unknown field %q", name, field)
			}
		}
		if _, ok := sc.Aliases[FieldName]; !ok {
			return nil, fmt.Errorf("sheet %q: no alias for %q", name, FieldName)
		}
	}
	if m.Defaults.Status == "" {
		m.Defaults.Status = models.StatusInStock
	}
	if !m.Defaults.Status.Valid() {
		return nil, fmt.Errorf("invalid default status %q", m.Defaults.Status)
	}
	return &m, nil
}

func (m *MappingConfig) sheet(name string) (SheetConfig, bool) {
	if sc, ok := m.Sheets[name]; ok {
		return sc, true
	}
	sc, ok := m.Sheets["*"]
	return sc, ok
}

// ImportExcel parses the workbook in r and upserts its rows into sink by
// barcode. Unknown category and location names are created. A dry run parses
// and validates only.
func ImportExcel(ctx context.Context, sink Sink, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}
	if opts.MaxErrors == 0 {
		opts.MaxErrors = 50
	}

	mapping, err := LoadMapping(opts.MappingPath)
	if err != nil {
		return summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs random access, so read everything first
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	var rows []Row
	for _, sheet := range xlFile.Sheets {
		sc, ok := mapping.sheet(sheet.Name)
		if !ok {
			continue
		}
		sheetRows, sheetSummary := parseSheet(sheet, sc, mapping.Defaults)
		rows = append(rows, sheetRows...)
		summary.Sheets = append(summary.Sheets, sheetSummary)
		summary.Rows += sheetSummary.Rows
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors

		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("too many errors (%d), stopping import", summary.Errors)
		}
	}
	if summary.Errors > 0 || opts.DryRun || len(rows) == 0 {
		return summary, nil
	}

	reqs, err := resolveRefs(ctx, sink, rows, &summary)
	if err != nil {
		return summary, err
	}
	for i := range reqs {
		reqs[i].CreatedBy = opts.CreatedBy
	}
	res, err := sink.ImportItems(ctx, reqs)
	if err != nil {
		return summary, fmt.Errorf("import items: %w", err)
	}
	summary.Inserted = res.Created
	summary.Updated = res.Updated
	return summary, nil
}

// parseSheet reads the header row, then every data row below it. Rows with no
// values are skipped; rows that fail to parse are counted as errors.
func parseSheet(sheet *xlsx.Sheet, sc SheetConfig, defaults Defaults) ([]Row, SheetSummary) {
	summary := SheetSummary{Name: sheet.Name}
	fail := func(line int, msg string) {
		summary.Errors++
		if len(summary.Samples) < 10 {
			summary.Samples = append(summary.Samples, RowError{Sheet: sheet.Name, Row: line, Message: msg})
		}
	}

	if sheet.MaxRow == 0 {
		return nil, summary
	}

	// header text (upper-cased) -> field
	aliasToField := make(map[string]string)
	for field, aliases := range sc.Aliases {
		for _, alias := range aliases {
			aliasToField[headerKey(alias)] = field
		}
	}
	columns := make(map[int]string)
	for col := 0; col < sheet.MaxCol; col++ {
		cell, err := sheet.Cell(0, col)
		if err != nil {
			continue
		}
		if field, ok := aliasToField[headerKey(cell.String())]; ok {
			columns[col] = field
		}
	}
	if !containsValue(columns, FieldName) {
		fail(1, "no name column in header row")
		return nil, summary
	}

	seen := make(map[string]int)
	var rows []Row
	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		line := rowIdx + 1
		values := make(map[string]string, len(columns))
		for col, field := range columns {
			cell, err := sheet.Cell(rowIdx, col)
			if err != nil {
				continue
			}
			if v := strings.TrimSpace(cell.String()); v != "" {
				values[field] = v
			}
		}
		if len(values) == 0 {
			summary.Skipped++
			continue
		}

		row, err := buildRow(values, sc, defaults)
		if err != nil {
			fail(line, err.Error())
			continue
		}
		if code := row.Item.Barcode; code != "" {
			if first, dup := seen[code]; dup {
				fail(line, fmt.Sprintf("barcode %s already used on row %d", code, first))
				continue
			}
			seen[code] = line
		}
		row.Sheet = sheet.Name
		row.Line = line
		rows = append(rows, row)
		summary.Rows++
	}
	return rows, summary
}

func buildRow(values map[string]string, sc SheetConfig, defaults Defaults) (Row, error) {
	var row Row
	req := &row.Item
	req.Status = defaults.Status
	req.Quantity = defaults.Quantity

	for field, raw := range values {
		v, err := parseValue(raw, sc.Types[field])
		if err != nil {
			return row, fmt.Errorf("%s: %w", field, err)
		}
		switch field {
		case FieldName:
			req.Name = v.(string)
		case FieldBrand:
			req.Brand = v.(string)
		case FieldModel:
			req.Model = v.(string)
		case FieldCategory:
			row.Category = v.(string)
		case FieldLocation:
			row.Location = v.(string)
		case FieldStatus:
			st, ok := v.(models.ItemStatus)
			if !ok {
				if st, err = models.ParseItemStatus(v.(string)); err != nil {
					return row, err
				}
			}
			req.Status = st
		case FieldSerialNumber:
			req.SerialNumber = v.(string)
		case FieldBarcode:
			req.Barcode = v.(string)
		case FieldDescription:
			req.Description = v.(string)
		case FieldQuantity:
			n, ok := v.(int)
			if !ok {
				if n, err = strconv.Atoi(v.(string)); err != nil {
					return row, fmt.Errorf("quantity: %w", err)
				}
			}
			req.Quantity = n
		case FieldPhotoURL:
			req.PhotoURL = v.(string)
		}
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return row, err
	}
	return row, nil
}

func parseValue(value, valueType string) (any, error) {
	switch strings.ToUpper(strings.TrimSuffix(valueType, "?")) {
	case "INT":
		// Spreadsheets often hand integers back as "3.0".
		if f, err := strconv.ParseFloat(value, 64); err == nil && f == float64(int(f)) {
			return int(f), nil
		}
		return nil, fmt.Errorf("not an integer: %q", value)
	case "STATUS":
		return models.ParseItemStatus(value)
	default:
		return value, nil
	}
}

// resolveRefs turns category and location names into ids, creating the ones
// that do not exist yet.
func resolveRefs(ctx context.Context, sink Sink, rows []Row, summary *ImportSummary) ([]models.CreateItemRequest, error) {
	cats, err := sink.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	catIDs := make(map[string]string, len(cats))
	for _, c := range cats {
		catIDs[strings.ToLower(c.Name)] = c.ID
	}
	locs, err := sink.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	locIDs := make(map[string]string, len(locs))
	for _, l := range locs {
		locIDs[strings.ToLower(l.Name)] = l.ID
	}

	reqs := make([]models.CreateItemRequest, 0, len(rows))
	for _, row := range rows {
		req := row.Item
		if row.Category != "" {
			key := strings.ToLower(row.Category)
			if _, ok := catIDs[key]; !ok {
				c, err := sink.CreateCategory(ctx, row.Category)
				if err != nil {
					return nil, fmt.Errorf("row %d: create category %q: %w", row.Line, row.Category, err)
				}
				catIDs[key] = c.ID
				summary.CategoriesCreated = append(summary.CategoriesCreated, c.Name)
			}
			req.CategoryID = catIDs[key]
		}
		if row.Location != "" {
			key := strings.ToLower(row.Location)
			if _, ok := locIDs[key]; !ok {
				l, err := sink.CreateLocation(ctx, row.Location)
				if err != nil {
					return nil, fmt.Errorf("row %d: create location %q: %w", row.Line, row.Location, err)
				}
				locIDs[key] = l.ID
				summary.LocationsCreated = append(summary.LocationsCreated, l.Name)
			}
			req.LocationID = locIDs[key]
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func headerKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func containsValue(m map[int]string, v string) bool {
	for _, x := range m {
		if x == v {
			return true
		}
	}
	return false
}
