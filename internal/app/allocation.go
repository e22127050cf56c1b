package app

import (
	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
	"github.com/shopspring/decimal"
)

// Share is the part of a monthly total charged to one unit.
type Share struct {
	UnitID string
	Area   float64
	Amount int64
}

// Allocation is the result of splitting a total across units by floor area.
type Allocation struct {
	Total       int64
	TotalArea   decimal.Decimal
	CostPerArea decimal.Decimal
	Shares      []Share
}

// DisplayCostPerArea is the cost per square metre rounded half-to-even to cents.
func (a Allocation) DisplayCostPerArea() float64 {
	f, _ := a.CostPerArea.RoundBank(2).Float64()
	return f
}

// Allocate splits total across units proportionally to their area. Each share
// is rounded half-to-even independently, so the shares may not add up to total.
func Allocate(total int64, units []domain.Unit) (Allocation, error) {
	if total < 0 {
		return Allocation{}, domain.Validationf("total cannot be negative")
	}

	totalArea := decimal.Zero
	for _, unit := range units {
		if unit.Area <= 0 {
			continue
		}
		totalArea = totalArea.Add(decimal.NewFromFloat(unit.Area))
	}
	if !totalArea.IsPositive() {
		return Allocation{}, domain.Validationf("there are no active units with floor area to bill")
	}

	totalAmount := decimal.NewFromInt(total)
	// Keep enough precision that the per-unit product rounds like the exact ratio.
	costPerArea := totalAmount.DivRound(totalArea, 16)

	shares := make([]Share, 0, len(units))
	for _, unit := range units {
		if unit.Area <= 0 {
			continue
		}
		area := decimal.NewFromFloat(unit.Area)
		amount := area.Mul(totalAmount).DivRound(totalArea, 16).RoundBank(0).IntPart()
		shares = append(shares, Share{UnitID: unit.ID, Area: unit.Area, Amount: amount})
	}

	return Allocation{
		Total:       total,
		TotalArea:   totalArea,
		CostPerArea: costPerArea,
		Shares:      shares,
	}, nil
}
