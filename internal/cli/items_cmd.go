package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"envanter/internal/apperr"
	"envanter/internal/inventory"
	"envanter/internal/models"
)

func newItemsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"depo"},
		Short:   "Browse and change inventory items",
	}
	cmd.AddCommand(newItemsListCmd(a))
	cmd.AddCommand(newItemsShowCmd(a))
	cmd.AddCommand(newItemsAddCmd(a))
	cmd.AddCommand(newItemsUpdateCmd(a))
	cmd.AddCommand(newItemsRemoveCmd(a))
	return cmd
}

func printItems(a *app, items []models.Item) error {
	return a.emit(items, func(w io.Writer) error {
		t := newTable(w, "ID", "BARKOD", "AD", "MARKA", "MODEL", "KATEGORİ", "LOKASYON", "DURUM", "MİKTAR")
		for _, it := range items {
			t.row(it.ID, it.Barcode, it.Name, dash(it.Brand), dash(it.Model), dash(it.CategoryName),
				dash(it.LocationName), it.Status.Label(), strconv.Itoa(it.Quantity))
		}
		return t.flush()
	})
}

func newItemsListCmd(a *app) *cobra.Command {
	var search, status, category, location, sort string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List items, optionally filtered and sorted",
		Args:    cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.load(ctx); err != nil {
				return err
			}
			q := inventory.ItemQuery{Search: search, Sort: sort}
			if status != "" {
				st, err := models.ParseItemStatus(status)
				if err != nil {
					return apperr.Validation("cli", err)
				}
				q.Status = st
			}
			var err error
			if q.CategoryID, err = a.categoryID(category); err != nil {
				return err
			}
			if q.LocationID, err = a.locationID(location); err != nil {
				return err
			}
			return printItems(a, a.cache.FindItems(q))
		}),
	}
	f := cmd.Flags()
	f.StringVarP(&search, "query", "q", "", "search name, brand, model, serial number and barcode")
	f.StringVar(&status, "status", "", "in_stock, checked_out, in_service, rented (or the Turkish label)")
	f.StringVar(&category, "category", "", "category name or id")
	f.StringVar(&location, "location", "", "location name or id")
	f.StringVar(&sort, "sort", "name", "sort keys, e.g. name,-quantity")
	return cmd
}

func newItemsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|barcode>",
		Short: "Show one item and its movements",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, args []string) error {
			if err := a.load(ctx); err != nil {
				return err
			}
			it, err := a.item(args[0])
			if err != nil {
				return err
			}
			moves := a.cache.FindMovements(inventory.MovementQuery{ItemID: it.ID})
			out := struct {
				models.Item
				Movements []models.Movement `json:"movements"`
			}{it, moves}
			return a.emit(out, func(w io.Writer) error {
				if err := printItems(a, []models.Item{it}); err != nil {
					return err
				}
				if len(moves) == 0 {
					return nil
				}
				fmt.Fprintln(w)
				return printMovements(a, moves)
			})
		}),
	}
}

// itemFlags are the item fields shared by add and update.
type itemFlags struct {
	name, brand, model, category, location, status string
	serial, barcode, description, photoURL         string
	quantity                                       int
}

func (f *itemFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "item name")
	fl.StringVar(&f.brand, "brand", "", "brand")
	fl.StringVar(&f.model, "model", "", "model")
	fl.StringVar(&f.category, "category", "", "category name or id")
	fl.StringVar(&f.location, "location", "", "location name or id")
	fl.StringVar(&f.status, "status", "", "status (default in_stock on add)")
	fl.StringVar(&f.serial, "serial", "", "serial number")
	fl.StringVar(&f.barcode, "barcode", "", "barcode (generated when empty on add)")
	fl.StringVar(&f.description, "description", "", "description")
	fl.StringVar(&f.photoURL, "photo-url", "", "photo URL")
	fl.IntVar(&f.quantity, "quantity", 1, "quantity")
}

func newItemsAddCmd(a *app) *cobra.Command {
	var (
		f      itemFlags
		copies int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item, or several single-quantity copies of it",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.mutable(ctx); err != nil {
				return err
			}
			req := models.CreateItemRequest{
				Name:         f.name,
				Brand:        f.brand,
				Model:        f.model,
				SerialNumber: f.serial,
				Barcode:      f.barcode,
				Description:  f.description,
				Quantity:     f.quantity,
				PhotoURL:     f.photoURL,
			}
			if f.status != "" {
				st, err := models.ParseItemStatus(f.status)
				if err != nil {
					return apperr.Validation("cli", err)
				}
				req.Status = st
			}
			var err error
			if req.CategoryID, err = a.categoryID(f.category); err != nil {
				return err
			}
			if req.LocationID, err = a.locationID(f.location); err != nil {
				return err
			}

			items, err := a.cache.AddItems(ctx, req, copies)
			if len(items) > 0 {
				if perr := printItems(a, items); perr != nil {
					return perr
				}
			}
			return err
		}),
	}
	f.register(cmd)
	cmd.Flags().IntVar(&copies, "copies", 1, "number of separate items to create, each with quantity 1")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newItemsUpdateCmd(a *app) *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "update <id|barcode>",
		Short: "Change the given fields of an item",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := a.mutable(ctx); err != nil {
				return err
			}
			it, err := a.item(args[0])
			if err != nil {
				return err
			}

			changed := cmd.Flags().Changed
			var patch models.ItemPatch
			str := func(flag string, v string, dst **string) {
				if changed(flag) {
					*dst = &v
				}
			}
			str("name", f.name, &patch.Name)
			str("brand", f.brand, &patch.Brand)
			str("model", f.model, &patch.Model)
			str("serial", f.serial, &patch.SerialNumber)
			str("barcode", f.barcode, &patch.Barcode)
			str("description", f.description, &patch.Description)
			str("photo-url", f.photoURL, &patch.PhotoURL)
			if changed("category") {
				id, err := a.categoryID(f.category)
				if err != nil {
					return err
				}
				patch.CategoryID = &id
			}
			if changed("location") {
				id, err := a.locationID(f.location)
				if err != nil {
					return err
				}
				patch.LocationID = &id
			}
			if changed("status") {
				st, err := models.ParseItemStatus(f.status)
				if err != nil {
					return apperr.Validation("cli", err)
				}
				patch.Status = &st
			}
			if changed("quantity") {
				q := f.quantity
				patch.Quantity = &q
			}

			updated, err := a.cache.UpdateItem(ctx, it.ID, patch)
			if err != nil {
				return err
			}
			return printItems(a, []models.Item{updated})
		}),
	}
	f.register(cmd)
	return cmd
}

func newItemsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id|barcode>",
		Aliases: []string{"delete"},
		Short:   "Delete an item and its movement history",
		Args:    cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, args []string) error {
			if err := a.mutable(ctx); err != nil {
				return err
			}
			it, err := a.item(args[0])
			if err != nil {
				return err
			}
			if err := a.cache.RemoveItem(ctx, it.ID); err != nil {
				return err
			}
			if a.output != "json" {
				fmt.Fprintf(a.out, "Silindi: %s (%s)\n", it.Name, it.Barcode)
			}
			return nil
		}),
	}
}
