package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"envanter/internal/apperr"
	"envanter/internal/inventory"
	"envanter/internal/models"
)

const dateLayout = time.DateOnly

func newMovementsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "movements",
		Aliases: []string{"hareketler"},
		Short:   "Record and browse stock movements",
	}
	cmd.AddCommand(newMovementsListCmd(a))
	cmd.AddCommand(newMovementsAddCmd(a))
	cmd.AddCommand(newMovementsRemoveCmd(a))
	return cmd
}

func printMovements(a *app, moves []models.Movement) error {
	return a.emit(moves, func(w io.Writer) error {
		t := newTable(w, "ID", "TARİH", "ÜRÜN", "TÜR", "MİKTAR", "LOKASYON", "KULLANICI", "AÇIKLAMA")
		for _, m := range moves {
			t.row(m.ID, formatDate(m.Date), dash(m.ItemName), m.Type.Label(), strconv.Itoa(m.Quantity),
				dash(m.LocationName), dash(m.ActorName), dash(m.Description))
		}
		return t.flush()
	})
}

// parseDay reads a YYYY-MM-DD date at local midnight. Empty means unset.
func parseDay(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return nil, apperr.Validation("cli", fmt.Errorf("--%s: want YYYY-MM-DD: %w", flag, err))
	}
	return &t, nil
}

func newMovementsListCmd(a *app) *cobra.Command {
	var search, typ, itemRef, location, from, to, sort string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List movements, newest first by default",
		Args:    cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.load(ctx); err != nil {
				return err
			}
			q := inventory.MovementQuery{Search: search, Sort: sort}
			var err error
			if typ != "" {
				if q.Type, err = models.ParseMovementType(typ); err != nil {
					return apperr.Validation("cli", err)
				}
			}
			if itemRef != "" {
				it, err := a.item(itemRef)
				if err != nil {
					return err
				}
				q.ItemID = it.ID
			}
			if q.LocationID, err = a.locationID(location); err != nil {
				return err
			}
			if q.From, err = parseDay("from", from); err != nil {
				return err
			}
			if q.To, err = parseDay("to", to); err != nil {
				return err
			}
			return printMovements(a, a.cache.FindMovements(q))
		}),
	}
	f := cmd.Flags()
	f.StringVarP(&search, "query", "q", "", "search item name and description")
	f.StringVar(&typ, "type", "", "in or out")
	f.StringVar(&itemRef, "item", "", "item id or barcode")
	f.StringVar(&location, "location", "", "location name or id")
	f.StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	f.StringVar(&to, "to", "", "last day (inclusive), YYYY-MM-DD")
	f.StringVar(&sort, "sort", "", "sort keys, e.g. -date,item")
	return cmd
}

func newMovementsAddCmd(a *app) *cobra.Command {
	var (
		typ, location, description, date string
		quantity                         int
	)
	cmd := &cobra.Command{
		Use:   "add <item id|barcode>",
		Short: "Record a stock movement; the item's quantity follows",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, args []string) error {
			if err := a.mutable(ctx); err != nil {
				return err
			}
			it, err := a.item(args[0])
			if err != nil {
				return err
			}
			mt, err := models.ParseMovementType(typ)
			if err != nil {
				return apperr.Validation("cli", err)
			}
			req := models.CreateMovementRequest{ItemID: it.ID, Type: mt, Quantity: quantity, Description: description}
			if req.LocationID, err = a.locationID(location); err != nil {
				return err
			}
			if req.Date, err = parseDay("date", date); err != nil {
				return err
			}

			m, err := a.cache.AddMovement(ctx, req)
			if err != nil {
				return err
			}
			after, _ := a.cache.Item(it.ID)
			return a.emit(models.MovementResult{Movement: m, ItemQuantity: after.Quantity}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s %s %d, yeni miktar %d\n", m.Type.Label(), it.Name, m.Quantity, after.Quantity)
				return err
			})
		}),
	}
	f := cmd.Flags()
	f.StringVar(&typ, "type", "", "in or out")
	f.IntVar(&quantity, "quantity", 1, "quantity moved")
	f.StringVar(&location, "location", "", "location name or id")
	f.StringVar(&description, "description", "", "description")
	f.StringVar(&date, "date", "", "movement day, YYYY-MM-DD (default now)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newMovementsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a movement record; the item's quantity is left as is",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, args []string) error {
			if a.offline {
				return errOffline
			}
			if err := a.session(ctx); err != nil {
				return err
			}
			if err := a.cache.RemoveMovement(ctx, args[0]); err != nil {
				return err
			}
			if a.output != "json" {
				fmt.Fprintf(a.out, "Silindi: %s\n", args[0])
			}
			return nil
		}),
	}
}
