package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type refKind int

const (
	categoriesKind refKind = iota
	locationsKind
)

// named is the shape shared by categories and locations.
type named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// refOps binds the cache calls for one kind of reference data.
type refOps struct {
	use, alias, short string
	list              func(a *app) []named
	add               func(ctx context.Context, a *app, name string) (named, error)
	remove            func(ctx context.Context, a *app, id string) error
	resolve           func(a *app, ref string) (string, error)
}

func opsFor(kind refKind) refOps {
	if kind == categoriesKind {
		return refOps{
			use: "categories", alias: "kategoriler", short: "Manage item categories",
			list: func(a *app) []named {
				out := []named{}
				for _, c := range a.cache.Categories() {
					out = append(out, named{ID: c.ID, Name: c.Name})
				}
				return out
			},
			add: func(ctx context.Context, a *app, name string) (named, error) {
				c, err := a.cache.AddCategory(ctx, name)
				return named{ID: c.ID, Name: c.Name}, err
			},
			remove: func(ctx context.Context, a *app, id string) error {
				return a.cache.RemoveCategory(ctx, id)
			},
			resolve: (*app).categoryID,
		}
	}
	return refOps{
		use: "locations", alias: "lokasyonlar", short: "Manage storage and event locations",
		list: func(a *app) []named {
			out := []named{}
			for _, l := range a.cache.Locations() {
				out = append(out, named{ID: l.ID, Name: l.Name})
			}
			return out
		},
		add: func(ctx context.Context, a *app, name string) (named, error) {
			l, err := a.cache.AddLocation(ctx, name)
			return named{ID: l.ID, Name: l.Name}, err
		},
		remove: func(ctx context.Context, a *app, id string) error {
			return a.cache.RemoveLocation(ctx, id)
		},
		resolve: (*app).locationID,
	}
}

func newRefDataCmd(a *app, kind refKind) *cobra.Command {
	ops := opsFor(kind)
	cmd := &cobra.Command{
		Use:     ops.use,
		Aliases: []string{ops.alias},
		Short:   ops.short,
	}

	printNamed := func(rows []named) error {
		return a.emit(rows, func(w io.Writer) error {
			t := newTable(w, "ID", "AD")
			for _, r := range rows {
				t.row(r.ID, r.Name)
			}
			return t.flush()
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List " + ops.use,
		Args:    cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.load(ctx); err != nil {
				return err
			}
			return printNamed(ops.list(a))
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add one of " + ops.use + " (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, args []string) error {
			if err := a.mutable(ctx); err != nil {
				return err
			}
			row, err := ops.add(ctx, a, args[0])
			if err != nil {
				return err
			}
			return printNamed([]named{row})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name|id>",
		Short: "Delete one of " + ops.use + " (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, args []string) error {
			if err := a.mutable(ctx); err != nil {
				return err
			}
			id, err := ops.resolve(a, args[0])
			if err != nil {
				return err
			}
			if err := ops.remove(ctx, a, id); err != nil {
				return err
			}
			if a.output != "json" {
				fmt.Fprintf(a.out, "Silindi: %s\n", args[0])
			}
			return nil
		}),
	})
	return cmd
}
