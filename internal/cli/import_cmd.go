package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"envanter/internal/apperr"
	"envanter/pkg/importer"
)

func newImportCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Upload an Excel item list (admin)",
		Long:  "Uploads an .xlsx workbook to the API. Rows are matched by barcode: existing items are updated, new ones inserted. Unknown categories and locations are created.",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, args []string) error {
			if a.offline {
				return errOffline
			}
			if err := a.session(ctx); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return apperr.Validation("cli", err)
			}
			defer f.Close()

			sum, err := a.client.ImportExcel(ctx, args[0], f, dryRun)
			if err != nil && sum.Rows == 0 {
				return err
			}
			if perr := a.emit(sum, func(w io.Writer) error { return printImport(w, sum) }); perr != nil {
				return perr
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
	return cmd
}

func printImport(w io.Writer, sum importer.ImportSummary) error {
	mode := ""
	if sum.DryRun {
		mode = " (deneme)"
	}
	fmt.Fprintf(w, "Satır: %d  Eklenen: %d  Güncellenen: %d  Atlanan: %d  Hatalı: %d%s\n",
		sum.Rows, sum.Inserted, sum.Updated, sum.Skipped, sum.Errors, mode)
	if len(sum.CategoriesCreated) > 0 {
		fmt.Fprintf(w, "Yeni kategoriler: %s\n", strings.Join(sum.CategoriesCreated, ", "))
	}
	if len(sum.LocationsCreated) > 0 {
		fmt.Fprintf(w, "Yeni lokasyonlar: %s\n", strings.Join(sum.LocationsCreated, ", "))
	}
	for _, sh := range sum.Sheets {
		for _, e := range sh.Samples {
			fmt.Fprintf(w, "  %s satır %d: %s\n", e.Sheet, e.Row, e.Message)
		}
	}
	return nil
}
