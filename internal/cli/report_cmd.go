package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"envanter/internal/inventory"
	"envanter/internal/models"
)

type report struct {
	Summary    inventory.Summary         `json:"summary"`
	ByCategory []inventory.CategoryStock `json:"by_category"`
	ByStatus   []inventory.StatusCount   `json:"by_status"`
	Daily      []inventory.DailyTotal    `json:"daily"`
	LowStock   []models.Item             `json:"low_stock"`
	Threshold  int                       `json:"low_stock_threshold"`
}

func newReportCmd(a *app) *cobra.Command {
	var (
		days int
		low  int
	)
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"raporlar"},
		Short:   "Print stock reports",
		Args:    cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			if err := a.load(ctx); err != nil {
				return err
			}
			threshold := a.cfg.LowStockThreshold
			if cmd.Flags().Changed("low") {
				threshold = low
			}
			r := report{
				Summary:    a.cache.Summarize(threshold),
				ByCategory: a.cache.StockByCategory(),
				ByStatus:   a.cache.CountByStatus(),
				Daily:      a.cache.DailyTotals(days, time.Now()),
				LowStock:   a.cache.LowStock(threshold),
				Threshold:  threshold,
			}
			return a.emit(r, func(w io.Writer) error { return printReport(w, r) })
		}),
	}
	cmd.Flags().IntVar(&days, "days", 7, "days of movement totals")
	cmd.Flags().IntVar(&low, "low", inventory.DefaultLowStockThreshold, "low stock threshold (default $ENVANTER_LOW_STOCK or 5)")
	return cmd
}

func printReport(w io.Writer, r report) error {
	fmt.Fprintf(w, "Ürün: %d  Toplam stok: %d  Dışarıda: %d  Düşük stok: %d\n\n",
		r.Summary.Items, r.Summary.TotalStock, r.Summary.CheckedOut, r.Summary.LowStock)

	t := newTable(w, "KATEGORİ", "ÜRÜN", "STOK")
	for _, c := range r.ByCategory {
		t.row(dash(c.CategoryName), strconv.Itoa(c.Items), strconv.Itoa(c.Quantity))
	}
	if err := t.flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	t = newTable(w, "DURUM", "ADET")
	for _, s := range r.ByStatus {
		t.row(s.Label, strconv.Itoa(s.Count))
	}
	if err := t.flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	t = newTable(w, "GÜN", "GİRİŞ", "ÇIKIŞ")
	for _, d := range r.Daily {
		t.row(d.Date.Format(time.DateOnly), strconv.Itoa(d.In), strconv.Itoa(d.Out))
	}
	if err := t.flush(); err != nil {
		return err
	}

	if len(r.LowStock) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nStok < %d\n", r.Threshold)
	t = newTable(w, "BARKOD", "AD", "MİKTAR")
	for _, it := range r.LowStock {
		t.row(it.Barcode, it.Name, strconv.Itoa(it.Quantity))
	}
	return t.flush()
}
