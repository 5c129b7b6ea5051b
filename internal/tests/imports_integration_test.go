//go:build integration

package tests

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"envanter/internal/listing"
	"envanter/internal/store"
	"envanter/internal/testutil"
	"envanter/pkg/importer"
)

func workbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Urunler")
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

func TestImportsIntegration(t *testing.T) {
	testutil.RequireIntegration(t)
	ctx := context.Background()

	data := workbook(t,
		[]string{"Ürün Adı", "Marka", "Kategori", "Lokasyon", "Durum", "Barkod", "Miktar"},
		[]string{"XLR Kablo", "Klotz", "Kablolar", "Merkez", "Depoda", "IMP-KBL-001", "10"},
		[]string{"Sahne Kutusu", "Neutrik", "Sahne Ekipmanı", "Depo 3", "Serviste", "IMP-KBL-002", "1"},
	)

	t.Run("UploadExcelDryRun", func(t *testing.T) {
		s := newStack(t)
		_, err := s.holder.Login(ctx, store.SeedAdminUsername, store.SeedAdminPassword)
		require.NoError(t, err)

		sum, err := s.client.ImportExcel(ctx, "kablolar.xlsx", bytes.NewReader(data), true)
		require.NoError(t, err)
		assert.True(t, sum.DryRun)
		assert.Equal(t, 2, sum.Rows)
		assert.Zero(t, sum.Inserted)
	})

	t.Run("ImportUpsertsByBarcode", func(t *testing.T) {
		sum, err := importer.ImportExcel(ctx, testStore, bytes.NewReader(data), importer.ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Inserted+sum.Updated)
		assert.Contains(t, sum.CategoriesCreated, "Sahne Ekipmanı")
		assert.Contains(t, sum.LocationsCreated, "Depo 3")

		again, err := importer.ImportExcel(ctx, testStore, bytes.NewReader(data), importer.ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, again.Updated)

		items, _, err := testStore.ListItems(ctx, listing.Params{Q: "IMP-KBL", Limit: listing.MaxLimit})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})
}
