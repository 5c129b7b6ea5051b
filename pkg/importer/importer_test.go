package importer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"envanter/internal/listing"
	"envanter/internal/models"
	"envanter/internal/store"
)

func sheetBytes(t *testing.T, name string, rows ...[]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet(name)
	require.NoError(t, err)
	for _, values := range rows {
		row := sh.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestLoadDefaultMapping(t *testing.T) {
	m, err := LoadMapping("")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, models.StatusInStock, m.Defaults.Status)

	sc, ok := m.sheet("Depo_Urunleri")
	require.True(t, ok)
	assert.Contains(t, sc.Aliases[FieldBarcode], "Barkod")
	assert.Equal(t, "INT", sc.Types[FieldQuantity])
}

func TestParseMappingRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no sheets", "version: 1\n"},
		{"unknown field", "sheets:\n  x:\n    aliases:\n      name: [Ad]\n      color: [Renk]\n"},
		{"no name alias", "sheets:\n  x:\n    aliases:\n      brand: [Marka]\n"},
		{"bad default status", "defaults:\n  status: lost\nsheets:\n  x:\n    aliases:\n      name: [Ad]\n"},
		{"not yaml", "sheets: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMapping([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseValue(t *testing.T) {
	v, err := parseValue("3.0", "INT")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = parseValue("3.5", "INT")
	assert.Error(t, err)

	v, err = parseValue("Kiralandı", "STATUS")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRented, v)

	v, err = parseValue("serbest", "")
	require.NoError(t, err)
	assert.Equal(t, "serbest", v)
}

func TestImportExcelUpsertsByBarcode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, store.Seed(ctx, st))

	data := sheetBytes(t, "Depo_Urunleri",
		[]string{"Ürün Adı", "Marka", "Kategori", "Lokasyon", "Seri No", "Barkod", "Miktar"},
		[]string{"Profesyonel Mikrofon", "Shure", "Mikrofonlar", "Merkez", "SHR-1234567", "MIKSHUSM58-001", "40"},
		[]string{"Sis Makinesi", "Antari", "Efektler", "Depo 2", "ANT-1", "EFK-001", "2"},
		[]string{"", "", "", "", "", "", ""},
	)

	sum, err := ImportExcel(ctx, st, bytes.NewReader(data), ImportOptions{CreatedBy: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Rows)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, []string{"Efektler"}, sum.CategoriesCreated)
	assert.Equal(t, []string{"Depo 2"}, sum.LocationsCreated)

	// existing stock is owned by movements, not the import
	items, _, err := st.ListItems(ctx, listing.Params{Q: "MIKSHUSM58-001"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)

	items, _, err = st.ListItems(ctx, listing.Params{Q: "EFK-001"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "Depo 2", items[0].LocationName)
}

func TestImportExcelRowErrors(t *testing.T) {
	st := store.NewMemory()
	data := sheetBytes(t, "Urunler",
		[]string{"Ürün Adı", "Barkod", "Adet"},
		[]string{"Kablo", "K-1", "1"},
		[]string{"Kablo", "K-1", "1"},
		[]string{"", "K-2", "1"},
		[]string{"Stand", "K-3", "iki"},
	)

	sum, err := ImportExcel(context.Background(), st, bytes.NewReader(data), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Errors)
	assert.Equal(t, 1, sum.Rows)
	require.Len(t, sum.Sheets, 1)
	assert.Equal(t, 3, sum.Sheets[0].Samples[0].Row)

	_, total, err := st.ListItems(context.Background(), listing.All)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestImportExcelMaxErrors(t *testing.T) {
	data := sheetBytes(t, "Urunler",
		[]string{"Ürün Adı", "Adet"},
		[]string{"A", "x"},
		[]string{"B", "y"},
	)
	_, err := ImportExcel(context.Background(), store.NewMemory(), bytes.NewReader(data), ImportOptions{MaxErrors: 1})
	assert.ErrorContains(t, err, "too many errors")
}

func TestImportExcelNoNameColumn(t *testing.T) {
	data := sheetBytes(t, "Urunler",
		[]string{"Marka", "Barkod"},
		[]string{"JBL", "X-1"},
	)
	sum, err := ImportExcel(context.Background(), store.NewMemory(), bytes.NewReader(data), ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
}
