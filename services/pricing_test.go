package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/campus-food/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func milkTea() *models.Item {
	return &models.Item{
		Name:  "Milk Tea",
		Price: decimal.Zero,
		VariationGroups: []models.VariationGroup{
			{ID: 1, Name: "Size", RequiredSelection: true, Options: []models.VariationOption{
				{ID: 11, Name: "Medium", Price: d("90")},
				{ID: 12, Name: "Large", Price: d("110")},
			}},
			{ID: 2, Name: "Sinkers", MultipleSelection: true, MinSelection: 2, MaxSelection: 3, Options: []models.VariationOption{
				{ID: 21, Name: "Pearls", Price: d("15")},
				{ID: 22, Name: "Nata", Price: d("10")},
				{ID: 23, Name: "Pudding", Price: d("20")},
				{ID: 24, Name: "Cheese foam", Price: d("25")},
			}},
			{ID: 3, Name: "Ice", Options: []models.VariationOption{
				{ID: 31, Name: "Less ice", Price: decimal.Zero},
			}},
		},
	}
}

func TestPriceSelection(t *testing.T) {
	item := milkTea()

	unit, vs, err := PriceSelection(item, []uint{12, 23, 21})
	require.NoError(t, err)
	assert.True(t, d("145").Equal(unit))
	require.Len(t, vs, 3)
	assert.Equal(t, 0, vs[0].Position)
	assert.Equal(t, uint(1), vs[0].VariationGroupID)
	assert.Equal(t, "Pudding", vs[1].Name)

	tests := []struct {
		name string
		ids  []uint
	}{
		{"missing required size", []uint{21, 22}},
		{"below group minimum", []uint{11, 21}},
		{"above group maximum", []uint{11, 21, 22, 23, 24}},
		{"two sizes", []uint{11, 12, 21, 22}},
		{"duplicate option", []uint{11, 21, 21}},
		{"unknown option", []uint{11, 21, 22, 99}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := PriceSelection(item, tt.ids)
			assert.ErrorIs(t, err, ErrInvalidSelection)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestStartingPrice(t *testing.T) {
	// cheapest size plus the two cheapest sinkers; the optional ice group adds nothing
	assert.True(t, d("115").Equal(StartingPrice(milkTea())))

	plain := &models.Item{Price: d("35.50")}
	assert.True(t, d("35.50").Equal(StartingPrice(plain)))

	free := &models.Item{Price: decimal.Zero}
	assert.True(t, StartingPrice(free).IsZero())
}

func TestLineTotal(t *testing.T) {
	assert.True(t, d("106.50").Equal(LineTotal(d("35.50"), 3)))
	assert.True(t, d("0.99").Equal(LineTotal(d("0.33"), 3)))
}
