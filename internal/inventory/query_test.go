package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envanter/internal/models"
)

func day(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func names(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestFindItems(t *testing.T) {
	c, _ := loaded(t)

	got := c.FindItems(ItemQuery{Search: "mik"})
	assert.ElementsMatch(t, []string{"Profesyonel Mikrofon", "Dijital Mikser"}, names(got))

	got = c.FindItems(ItemQuery{Status: models.StatusInStock, Sort: "-quantity"})
	assert.Equal(t, []string{"LED Par Işık", "Profesyonel Mikrofon", "DMX Kontrol Ünitesi"}, names(got))

	got = c.FindItems(ItemQuery{Search: "SHR-123"})
	require.Len(t, got, 1)
	assert.Equal(t, "Shure", got[0].Brand)

	light := c.FindItems(ItemQuery{Search: "LED"})[0]
	got = c.FindItems(ItemQuery{CategoryID: light.CategoryID, Sort: "name"})
	assert.Equal(t, []string{"DMX Kontrol Ünitesi", "LED Par Işık"}, names(got))

	got = c.FindItems(ItemQuery{Sort: "location,name"})
	require.Len(t, got, 6)
	assert.Equal(t, "Merkez", got[0].LocationName)

	assert.Empty(t, c.FindItems(ItemQuery{Search: "yok böyle bir şey"}))
}

func TestFindMovements(t *testing.T) {
	c, _ := loaded(t)

	got := c.FindMovements(MovementQuery{})
	require.Len(t, got, 5)
	assert.True(t, got[0].Date.After(got[4].Date), "newest first by default")

	got = c.FindMovements(MovementQuery{From: day("2024-03-05"), To: day("2024-03-10")})
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-10", got[0].Date.Format(time.DateOnly))

	got = c.FindMovements(MovementQuery{Type: models.MovementIn, Sort: "quantity"})
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Quantity)
	assert.Equal(t, 5, got[1].Quantity)

	got = c.FindMovements(MovementQuery{Search: "servis"})
	require.Len(t, got, 1)
	assert.Equal(t, "Dijital Mikser", got[0].ItemName)
}
