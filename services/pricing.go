package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/campus-food/models"
)

// PriceSelection validates the chosen option ids against the item's variation
// groups and returns the unit price with the ordered variation snapshot.
func PriceSelection(item *models.Item, optionIDs []uint) (decimal.Decimal, []models.OrderDetailVariation, error) {
	type located struct {
		group  *models.VariationGroup
		option *models.VariationOption
	}
	index := make(map[uint]located)
	for gi := range item.VariationGroups {
		g := &item.VariationGroups[gi]
		for oi := range g.Options {
			index[g.Options[oi].ID] = located{group: g, option: &g.Options[oi]}
		}
	}

	unit := item.Price
	counts := make(map[uint]int)
	seen := make(map[uint]bool)
	chosen := make([]models.OrderDetailVariation, 0, len(optionIDs))
	for pos, id := range optionIDs {
		loc, ok := index[id]
		if !ok {
			return decimal.Zero, nil, fmt.Errorf("%w: option %d does not belong to %q", ErrInvalidSelection, id, item.Name)
		}
		if seen[id] {
			return decimal.Zero, nil, fmt.Errorf("%w: option %q selected twice", ErrInvalidSelection, loc.option.Name)
		}
		seen[id] = true
		counts[loc.group.ID]++
		unit = unit.Add(loc.option.Price)
		chosen = append(chosen, models.OrderDetailVariation{
			Position:          pos,
			VariationGroupID:  loc.group.ID,
			VariationOptionID: id,
			Name:              loc.option.Name,
			Price:             loc.option.Price,
		})
	}

	for _, g := range item.VariationGroups {
		n := counts[g.ID]
		if least := g.MinRequired(); n < least {
			return decimal.Zero, nil, fmt.Errorf("%w: %q requires at least %d selection(s)", ErrInvalidSelection, g.Name, least)
		}
		if most := g.MaxAllowed(); most > 0 && n > most {
			return decimal.Zero, nil, fmt.Errorf("%w: %q allows at most %d selection(s)", ErrInvalidSelection, g.Name, most)
		}
	}

	return unit.Round(2), chosen, nil
}

// StartingPrice is the "from" price shown for an item: its base price, or for
// variant-priced items the cheapest combination that satisfies every group
// that is required or has a minimum selection.
func StartingPrice(item *models.Item) decimal.Decimal {
	if item.Price.IsPositive() {
		return item.Price
	}

	total := decimal.Zero
	for _, g := range item.VariationGroups {
		need := g.MinRequired()
		if need == 0 {
			continue
		}
		if most := g.MaxAllowed(); most > 0 && need > most {
			need = most
		}
		prices := make([]decimal.Decimal, 0, len(g.Options))
		for _, o := range g.Options {
			prices = append(prices, o.Price)
		}
		sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
		if need > len(prices) {
			need = len(prices)
		}
		for _, p := range prices[:need] {
			total = total.Add(p)
		}
	}
	return total.Round(2)
}

// LineTotal is quantity × unit price.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}
