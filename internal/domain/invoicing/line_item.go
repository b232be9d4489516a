package invoicing

import (
	"strings"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/taxation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultUnitCode is the unit of measure for goods sold by piece (catalogue 03)
const DefaultUnitCode = "NIU"

// LineSpec carries the seller-entered data of a line
type LineSpec struct {
	ProductID        *uuid.UUID
	ProductCode      string
	Description      string
	UnitCode         string
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	UnitDiscount     decimal.Decimal
	TaxabilityCode   taxation.TaxabilityCode
	TaxRate          decimal.Decimal
	PriceIncludesTax bool
}

// LineItem is one line of a fiscal document.
// Value, Tax and Total are derived from the inputs by the tax calculator.
type LineItem struct {
	ID               uuid.UUID
	DocumentID       uuid.UUID
	LineNo           int
	ProductID        *uuid.UUID
	ProductCode      string
	Description      string
	UnitCode         string
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	UnitDiscount     decimal.Decimal
	TaxabilityCode   taxation.TaxabilityCode
	TaxRate          decimal.Decimal
	PriceIncludesTax bool
	Value            decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
}

// NewLineItem creates a line and computes its figures
func NewLineItem(documentID uuid.UUID, lineNo int, spec LineSpec) (*LineItem, error) {
	description := strings.TrimSpace(spec.Description)
	if description == "" {
		return nil, shared.NewDomainError(shared.ErrInvalidLineItem.Code, "Line description cannot be empty")
	}
	if len(description) > 500 {
		return nil, shared.NewDomainError(shared.ErrInvalidLineItem.Code, "Line description cannot exceed 500 characters")
	}
	unit := strings.ToUpper(strings.TrimSpace(spec.UnitCode))
	if unit == "" {
		unit = DefaultUnitCode
	}

	item := &LineItem{
		ID:               uuid.New(),
		DocumentID:       documentID,
		LineNo:           lineNo,
		ProductID:        spec.ProductID,
		ProductCode:      spec.ProductCode,
		Description:      description,
		UnitCode:         unit,
		Quantity:         spec.Quantity,
		UnitPrice:        spec.UnitPrice,
		UnitDiscount:     spec.UnitDiscount,
		TaxabilityCode:   spec.TaxabilityCode,
		TaxRate:          spec.TaxRate,
		PriceIncludesTax: spec.PriceIncludesTax,
	}
	figures, err := taxation.ComputeLine(item.Input())
	if err != nil {
		return nil, err
	}
	item.apply(figures)
	return item, nil
}

// Input returns the calculator input of the line
func (l *LineItem) Input() taxation.LineInput {
	return taxation.LineInput{
		Quantity:         l.Quantity,
		UnitPrice:        l.UnitPrice,
		UnitDiscount:     l.UnitDiscount,
		Code:             l.TaxabilityCode,
		Rate:             l.TaxRate,
		PriceIncludesTax: l.PriceIncludesTax,
	}
}

// Figures returns the stored computed figures
func (l *LineItem) Figures() taxation.LineFigures {
	class, _ := l.TaxabilityCode.Class()
	return taxation.LineFigures{Class: class, Value: l.Value, Tax: l.Tax, Total: l.Total}
}

// Recomputed returns a copy of the line with freshly computed figures
func (l LineItem) Recomputed() (LineItem, error) {
	figures, err := taxation.ComputeLine(l.Input())
	if err != nil {
		return LineItem{}, err
	}
	l.apply(figures)
	return l, nil
}

func (l *LineItem) apply(f taxation.LineFigures) {
	l.Value = f.Value
	l.Tax = f.Tax
	l.Total = f.Total
}
