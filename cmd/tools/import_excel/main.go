// Command import_excel loads an .xlsx item list straight into Postgres,
// bypassing the API. It takes the same mapping file as POST /imports/excel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"envanter/internal/config"
	"envanter/internal/store"
	"envanter/pkg/importer"
)

func main() {
	var (
		mapping   = flag.String("mapping", "", "YAML column mapping (default: embedded mapping)")
		owner     = flag.String("as", "", "Username recorded as creator of new items")
		dsn       = flag.String("dsn", "", "Postgres DSN (overrides DB_DSN env var)")
		dryRun    = flag.Bool("dry-run", false, "Parse and validate only")
		maxErrors = flag.Int("max-errors", 50, "Stop collecting row errors after this many")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: import_excel [flags] <file.xlsx>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := config.Load()
	if *dsn != "" {
		cfg.DBDSN = *dsn
	}
	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN or -dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pg, err := store.OpenPostgres(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pg.Close()

	var createdBy string
	if *owner != "" {
		u, err := pg.GetUserByUsername(ctx, *owner)
		if err != nil {
			log.Fatalf("user %q: %v", *owner, err)
		}
		createdBy = u.ID
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sum, err := importer.ImportExcel(ctx, pg, f, importer.ImportOptions{
		MappingPath: *mapping,
		DryRun:      *dryRun,
		MaxErrors:   *maxErrors,
		CreatedBy:   createdBy,
	})
	report(path, sum)

	switch {
	case err != nil:
		log.Fatalf("import failed: %v", err)
	case sum.Errors > 0:
		log.Fatal("nothing imported: fix the rows above and run again")
	}
}

func report(path string, sum importer.ImportSummary) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "file\t%s\n", path)
	fmt.Fprintf(tw, "dry run\t%v\n", sum.DryRun)
	fmt.Fprintf(tw, "rows\t%d\n", sum.Rows)
	fmt.Fprintf(tw, "inserted\t%d\n", sum.Inserted)
	fmt.Fprintf(tw, "updated\t%d\n", sum.Updated)
	fmt.Fprintf(tw, "skipped\t%d\n", sum.Skipped)
	fmt.Fprintf(tw, "errors\t%d\n", sum.Errors)
	if len(sum.CategoriesCreated) > 0 {
		fmt.Fprintf(tw, "new categories\t%s\n", strings.Join(sum.CategoriesCreated, ", "))
	}
	if len(sum.LocationsCreated) > 0 {
		fmt.Fprintf(tw, "new locations\t%s\n", strings.Join(sum.LocationsCreated, ", "))
	}
	for _, sh := range sum.Sheets {
		fmt.Fprintf(tw, "sheet %s\trows=%d skipped=%d errors=%d\n", sh.Name, sh.Rows, sh.Skipped, sh.Errors)
		for _, e := range sh.Samples {
			fmt.Fprintf(tw, "  row %d\t%s\n", e.Row, e.Message)
		}
	}
}
