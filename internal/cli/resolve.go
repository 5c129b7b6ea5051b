package cli

import (
	"fmt"
	"strings"

	"envanter/internal/apperr"
	"envanter/internal/models"
)

// Commands accept reference data and items either by id or by what a user
// sees: category and location names, item barcodes.

func notFound(what, ref string) error {
	return apperr.New(apperr.KindNotFound, "cli", fmt.Errorf("%s %q not found", what, ref))
}

func (a *app) categoryID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	for _, c := range a.cache.Categories() {
		if c.ID == ref || strings.EqualFold(c.Name, ref) {
			return c.ID, nil
		}
	}
	return "", notFound("category", ref)
}

func (a *app) locationID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	for _, l := range a.cache.Locations() {
		if l.ID == ref || strings.EqualFold(l.Name, ref) {
			return l.ID, nil
		}
	}
	return "", notFound("location", ref)
}

func (a *app) item(ref string) (models.Item, error) {
	ref = strings.TrimSpace(ref)
	if it, ok := a.cache.Item(ref); ok {
		return it, nil
	}
	if it, ok := a.cache.ItemByBarcode(ref); ok {
		return it, nil
	}
	return models.Item{}, notFound("item", ref)
}
