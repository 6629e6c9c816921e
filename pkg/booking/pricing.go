package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var (
	decimalOneHundred = decimal.NewFromInt(100)

	// pricePlaces is the scale every computed price is rounded to.
	pricePlaces int32 = 2
)

// CalculatePrice computes the authoritative total for booking a field over
// [start, end). Client-supplied prices are never consulted. The single
// best active promotion is applied; percentage promotions always beat
// fixed-amount ones, even when the fixed discount would be larger.
func (service *Service) CalculatePrice(ctx context.Context, fieldID string, start, end time.Time) (decimal.Decimal, error) {
	if !end.After(start) {
		return decimal.Zero, ErrInvalidTimeRange
	}
	field, err := service.store.GetField(ctx, fieldID)
	if err != nil {
		return decimal.Zero, err
	}
	return service.priceForField(ctx, field, start, end)
}

func (service *Service) priceForField(ctx context.Context, field Field, start, end time.Time) (decimal.Decimal, error) {
	durationHours := decimal.NewFromFloat(end.Sub(start).Hours())
	baseTotal := field.BasePricePerHour.Mul(durationHours)

	// The booking date for promotion eligibility is the requested start.
	promotions, err := service.store.ListActivePromotions(ctx, field.ID, start)
	if err != nil {
		return decimal.Zero, err
	}
	return applyBestPromotion(baseTotal, promotions).Round(pricePlaces), nil
}

func applyBestPromotion(baseTotal decimal.Decimal, promotions []Promotion) decimal.Decimal {
	var bestPercentage, bestFixed decimal.Decimal
	var havePercentage, haveFixed bool
	for _, promotion := range promotions {
		switch promotion.DiscountType {
		case DiscountPercentage:
			if !havePercentage || promotion.DiscountValue.GreaterThan(bestPercentage) {
				bestPercentage = promotion.DiscountValue
				havePercentage = true
			}
		case DiscountFixedAmount:
			if !haveFixed || promotion.DiscountValue.GreaterThan(bestFixed) {
				bestFixed = promotion.DiscountValue
				haveFixed = true
			}
		}
	}
	if havePercentage {
		factor := decimal.NewFromInt(1).Sub(bestPercentage.Div(decimalOneHundred))
		return baseTotal.Mul(factor)
	}
	if haveFixed {
		discounted := baseTotal.Sub(bestFixed)
		if discounted.IsNegative() {
			return decimal.Zero
		}
		return discounted
	}
	return baseTotal
}
