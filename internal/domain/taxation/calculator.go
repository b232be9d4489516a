package taxation

import (
	"fmt"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DefaultIGVRate is the general sales tax rate in percent
var DefaultIGVRate = decimal.NewFromInt(18)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// LineInput carries the figures of one line as entered by the seller.
// Quantity, UnitPrice and UnitDiscount may have at most 4 fractional digits.
// Rate is a percentage (18 means 18%).
type LineInput struct {
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	UnitDiscount     decimal.Decimal
	Code             TaxabilityCode
	Rate             decimal.Decimal
	PriceIncludesTax bool
}

// LineFigures are the computed monetary outputs of a line.
// Value and Tax are rounded to 2 fractional digits and Total = Value + Tax.
type LineFigures struct {
	Class TaxClass
	Gross decimal.Decimal // quantity × (price − discount), 4 fractional digits
	Value decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// ComputeLine computes value, tax and total for one line.
// Rounding to monetary precision happens once, on the final figures.
func ComputeLine(in LineInput) (LineFigures, error) {
	class, err := in.Code.Class()
	if err != nil {
		return LineFigures{}, shared.NewDomainError(shared.ErrInvalidTaxabilityCode.Code, err.Error())
	}
	if err := validateLineInput(in); err != nil {
		return LineFigures{}, err
	}

	gross := valueobject.RoundQuantity(in.Quantity.Mul(in.UnitPrice.Sub(in.UnitDiscount)))
	if gross.IsNegative() {
		return LineFigures{}, invalidLine("Discount cannot exceed unit price")
	}

	figures := LineFigures{Class: class, Gross: gross}
	switch {
	case class != ClassTaxed:
		figures.Value = valueobject.RoundMoney(gross)
		figures.Tax = decimal.Zero
	case in.PriceIncludesTax:
		if in.Rate.LessThan(decimal.Zero) || in.Rate.GreaterThan(hundred) {
			return LineFigures{}, invalidRate(in.Rate)
		}
		net := valueobject.RoundQuantity(gross.Div(one.Add(in.Rate.Div(hundred))))
		figures.Value = valueobject.RoundMoney(net)
		figures.Tax = valueobject.RoundMoney(gross).Sub(figures.Value)
	default:
		if in.Rate.LessThan(decimal.Zero) || in.Rate.GreaterThan(hundred) {
			return LineFigures{}, invalidRate(in.Rate)
		}
		figures.Value = valueobject.RoundMoney(gross)
		figures.Tax = valueobject.RoundMoney(valueobject.Percent(gross, in.Rate))
	}
	figures.Total = figures.Value.Add(figures.Tax)

	if !valueobject.FitsMoney(figures.Value, figures.Tax, figures.Total) {
		return LineFigures{}, shared.NewDomainError(shared.ErrRoundingOverflow.Code,
			fmt.Sprintf("Line total %s exceeds %s", figures.Total.String(), valueobject.MaxMonetaryAmount.String()))
	}
	return figures, nil
}

func validateLineInput(in LineInput) error {
	if !in.Quantity.IsPositive() {
		return invalidLine("Quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return invalidLine("Unit price cannot be negative")
	}
	if in.UnitDiscount.IsNegative() {
		return invalidLine("Unit discount cannot be negative")
	}
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"quantity", in.Quantity},
		{"unit price", in.UnitPrice},
		{"unit discount", in.UnitDiscount},
	}
	for _, f := range fields {
		if !f.value.Equal(valueobject.RoundQuantity(f.value)) {
			return invalidLine(fmt.Sprintf("The %s cannot have more than %d decimal places", f.name, valueobject.QuantityPlaces))
		}
	}
	return nil
}

// DiscountFromPercent converts a percentage discount into a per-unit amount
func DiscountFromPercent(unitPrice, percent decimal.Decimal) (decimal.Decimal, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return decimal.Zero, invalidLine("Discount percentage must be between 0 and 100")
	}
	return valueobject.RoundQuantity(valueobject.Percent(unitPrice, percent)), nil
}

func invalidLine(msg string) error {
	return shared.NewDomainError(shared.ErrInvalidLineItem.Code, msg)
}

func invalidRate(rate decimal.Decimal) error {
	return shared.NewDomainError(shared.ErrInvalidTaxRate.Code,
		fmt.Sprintf("Tax rate %s must be between 0 and 100", rate.String()))
}
