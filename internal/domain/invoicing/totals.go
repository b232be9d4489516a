package invoicing

import (
	"fmt"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/domain/taxation"
	"github.com/shopspring/decimal"
)

// Adjustments are the document-level figures applied on top of the lines
type Adjustments struct {
	GlobalDiscount    decimal.Decimal
	Surcharge         decimal.Decimal
	OtherTaxes        decimal.Decimal
	DetractionPercent decimal.Decimal
}

// Totals are the document figures folded from its lines.
// GrandTotal = Subtotal + TaxTotal + OtherTaxes + Surcharge − Discount.
// Detraction is informative and never subtracted from GrandTotal.
type Totals struct {
	TaxedBase      decimal.Decimal
	ExemptBase     decimal.Decimal
	UnaffectedBase decimal.Decimal
	ExportBase     decimal.Decimal
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Surcharge      decimal.Decimal
	TaxTotal       decimal.Decimal
	OtherTaxes     decimal.Decimal
	GrandTotal     decimal.Decimal
	Detraction     decimal.Decimal
}

// Equal compares every figure by value
func (t Totals) Equal(o Totals) bool {
	pairs := [][2]decimal.Decimal{
		{t.TaxedBase, o.TaxedBase}, {t.ExemptBase, o.ExemptBase},
		{t.UnaffectedBase, o.UnaffectedBase}, {t.ExportBase, o.ExportBase},
		{t.Subtotal, o.Subtotal}, {t.Discount, o.Discount}, {t.Surcharge, o.Surcharge},
		{t.TaxTotal, o.TaxTotal}, {t.OtherTaxes, o.OtherTaxes},
		{t.GrandTotal, o.GrandTotal}, {t.Detraction, o.Detraction},
	}
	for _, p := range pairs {
		if !p[0].Equal(p[1]) {
			return false
		}
	}
	return true
}

// ZeroTotals returns totals with every figure at zero
func ZeroTotals() Totals {
	z := decimal.Zero
	return Totals{z, z, z, z, z, z, z, z, z, z, z}
}

// Recompute folds already-computed line figures and document adjustments into totals.
// It is pure: the same inputs always give identical totals and the lines are not touched.
func Recompute(lines []taxation.LineFigures, adj Adjustments) (Totals, error) {
	if err := validateAdjustments(adj); err != nil {
		return Totals{}, err
	}

	t := ZeroTotals()
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Value)
		t.TaxTotal = t.TaxTotal.Add(l.Tax)
		switch l.Class {
		case taxation.ClassTaxed:
			t.TaxedBase = t.TaxedBase.Add(l.Value)
		case taxation.ClassExempt:
			t.ExemptBase = t.ExemptBase.Add(l.Value)
		case taxation.ClassUnaffected:
			t.UnaffectedBase = t.UnaffectedBase.Add(l.Value)
		case taxation.ClassExport:
			t.ExportBase = t.ExportBase.Add(l.Value)
		}
	}

	if adj.GlobalDiscount.GreaterThan(t.Subtotal.Add(t.TaxTotal)) {
		return Totals{}, shared.NewDomainError(shared.ErrInvalidDiscount.Code,
			fmt.Sprintf("Discount %s exceeds subtotal plus tax %s", adj.GlobalDiscount.StringFixed(2), t.Subtotal.Add(t.TaxTotal).StringFixed(2)))
	}

	t.Discount = adj.GlobalDiscount
	t.Surcharge = adj.Surcharge
	t.OtherTaxes = adj.OtherTaxes
	t.GrandTotal = t.Subtotal.Add(t.TaxTotal).Add(t.OtherTaxes).Add(t.Surcharge).Sub(t.Discount)
	t.Detraction = valueobject.RoundMoney(valueobject.Percent(t.GrandTotal, adj.DetractionPercent))

	if !valueobject.FitsMoney(t.Subtotal, t.TaxTotal, t.GrandTotal) {
		return Totals{}, shared.NewDomainError(shared.ErrRoundingOverflow.Code,
			fmt.Sprintf("Document total %s exceeds %s", t.GrandTotal.String(), valueobject.MaxMonetaryAmount.String()))
	}
	return t, nil
}

func validateAdjustments(adj Adjustments) error {
	if adj.GlobalDiscount.IsNegative() {
		return shared.NewDomainError(shared.ErrInvalidDiscount.Code, "Discount cannot be negative")
	}
	if adj.Surcharge.IsNegative() || adj.OtherTaxes.IsNegative() {
		return shared.NewDomainError("INVALID_ADJUSTMENT", "Surcharge and other taxes cannot be negative")
	}
	for _, a := range []decimal.Decimal{adj.GlobalDiscount, adj.Surcharge, adj.OtherTaxes} {
		if !a.Equal(valueobject.RoundMoney(a)) {
			return shared.NewDomainError("INVALID_ADJUSTMENT",
				fmt.Sprintf("Document adjustment %s has more than %d decimal places", a.String(), valueobject.MoneyPlaces))
		}
	}
	if adj.DetractionPercent.IsNegative() || adj.DetractionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_ADJUSTMENT", "Detraction percentage must be between 0 and 100")
	}
	return nil
}
