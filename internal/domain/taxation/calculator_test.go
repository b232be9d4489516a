package taxation

import (
	"errors"
	"testing"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTaxabilityCode_Class(t *testing.T) {
	tests := []struct {
		code  TaxabilityCode
		class TaxClass
	}{
		{TaxedOnerous, ClassTaxed},
		{TaxedIVAP, ClassTaxed},
		{ExemptOnerous, ClassExempt},
		{ExemptFree, ClassExempt},
		{UnaffectedOnerous, ClassUnaffected},
		{UnaffectedAds, ClassUnaffected},
		{Export, ClassExport},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			class, err := tt.code.Class()
			require.NoError(t, err)
			assert.Equal(t, tt.class, class)
			assert.True(t, tt.code.IsValid())
		})
	}

	_, err := TaxabilityCode("99").Class()
	assert.Error(t, err)
	assert.False(t, TaxabilityCode("").IsValid())
	assert.True(t, TaxedBonus.IsTaxed())
	assert.False(t, Export.IsTaxed())
}

func TestComputeLine(t *testing.T) {
	tests := []struct {
		name  string
		in    LineInput
		value string
		tax   string
		total string
	}{
		{
			name:  "taxed exclusive",
			in:    LineInput{Quantity: d("2"), UnitPrice: d("59.00"), Code: TaxedOnerous, Rate: d("18")},
			value: "118.00", tax: "21.24", total: "139.24",
		},
		{
			name:  "taxed inclusive extracts tax",
			in:    LineInput{Quantity: d("1"), UnitPrice: d("118.00"), Code: TaxedOnerous, Rate: d("18"), PriceIncludesTax: true},
			value: "100.00", tax: "18.00", total: "118.00",
		},
		{
			name:  "taxed inclusive keeps gross exact",
			in:    LineInput{Quantity: d("1"), UnitPrice: d("10"), Code: TaxedOnerous, Rate: d("18"), PriceIncludesTax: true},
			value: "8.47", tax: "1.53", total: "10.00",
		},
		{
			name:  "half rounds up",
			in:    LineInput{Quantity: d("1"), UnitPrice: d("0.25"), Code: TaxedOnerous, Rate: d("18")},
			value: "0.25", tax: "0.05", total: "0.30",
		},
		{
			name:  "intermediate keeps four digits",
			in:    LineInput{Quantity: d("1.5"), UnitPrice: d("3.3333"), Code: TaxedOnerous, Rate: d("18")},
			value: "5.00", tax: "0.90", total: "5.90",
		},
		{
			name:  "unit discount",
			in:    LineInput{Quantity: d("2"), UnitPrice: d("50"), UnitDiscount: d("5"), Code: TaxedOnerous, Rate: d("18")},
			value: "90.00", tax: "16.20", total: "106.20",
		},
		{
			name:  "exempt ignores rate",
			in:    LineInput{Quantity: d("3"), UnitPrice: d("10.50"), Code: ExemptOnerous, Rate: d("18")},
			value: "31.50", tax: "0", total: "31.50",
		},
		{
			name:  "unaffected",
			in:    LineInput{Quantity: d("1"), UnitPrice: d("99.99"), Code: UnaffectedOnerous, Rate: d("18"), PriceIncludesTax: true},
			value: "99.99", tax: "0", total: "99.99",
		},
		{
			name:  "export ignores out of range rate",
			in:    LineInput{Quantity: d("10"), UnitPrice: d("7.5"), Code: Export, Rate: d("150")},
			value: "75.00", tax: "0", total: "75.00",
		},
		{
			name:  "free line",
			in:    LineInput{Quantity: d("1"), UnitPrice: d("0"), Code: TaxedOnerous, Rate: d("18")},
			value: "0", tax: "0", total: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeLine(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Value.Equal(d(tt.value)), "value %s", got.Value)
			assert.True(t, got.Tax.Equal(d(tt.tax)), "tax %s", got.Tax)
			assert.True(t, got.Total.Equal(d(tt.total)), "total %s", got.Total)
			assert.True(t, got.Total.Equal(got.Value.Add(got.Tax)))
		})
	}
}

func TestComputeLine_InclusiveRoundTrip(t *testing.T) {
	got, err := ComputeLine(LineInput{Quantity: d("1"), UnitPrice: d("118.00"), Code: TaxedOnerous, Rate: d("18"), PriceIncludesTax: true})
	require.NoError(t, err)
	assert.Equal(t, "118.00", got.Value.Add(got.Tax).StringFixed(2))

	for _, price := range []string{"0.01", "1.99", "33.33", "1234.5678", "0.0001"} {
		got, err := ComputeLine(LineInput{Quantity: d("3"), UnitPrice: d(price), Code: TaxedOnerous, Rate: d("18"), PriceIncludesTax: true})
		require.NoError(t, err)
		assert.True(t, got.Value.Add(got.Tax).Equal(got.Gross.Round(2)), "price %s", price)
	}
}

func TestComputeLine_Deterministic(t *testing.T) {
	in := LineInput{Quantity: d("7.125"), UnitPrice: d("13.4567"), UnitDiscount: d("0.5"), Code: TaxedOnerous, Rate: d("18")}
	first, err := ComputeLine(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ComputeLine(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   LineInput
		want error
	}{
		{"zero quantity", LineInput{Quantity: d("0"), UnitPrice: d("1"), Code: TaxedOnerous, Rate: d("18")}, shared.ErrInvalidLineItem},
		{"negative quantity", LineInput{Quantity: d("-1"), UnitPrice: d("1"), Code: TaxedOnerous, Rate: d("18")}, shared.ErrInvalidLineItem},
		{"negative price", LineInput{Quantity: d("1"), UnitPrice: d("-1"), Code: TaxedOnerous, Rate: d("18")}, shared.ErrInvalidLineItem},
		{"discount above price", LineInput{Quantity: d("1"), UnitPrice: d("5"), UnitDiscount: d("6"), Code: TaxedOnerous, Rate: d("18")}, shared.ErrInvalidLineItem},
		{"negative discount", LineInput{Quantity: d("1"), UnitPrice: d("5"), UnitDiscount: d("-1"), Code: TaxedOnerous, Rate: d("18")}, shared.ErrInvalidLineItem},
		{"five decimal quantity", LineInput{Quantity: d("1.00001"), UnitPrice: d("5"), Code: TaxedOnerous, Rate: d("18")}, shared.ErrInvalidLineItem},
		{"unknown code", LineInput{Quantity: d("1"), UnitPrice: d("5"), Code: "99", Rate: d("18")}, shared.ErrInvalidTaxabilityCode},
		{"rate above hundred", LineInput{Quantity: d("1"), UnitPrice: d("5"), Code: TaxedOnerous, Rate: d("101")}, shared.ErrInvalidTaxRate},
		{"negative inclusive rate", LineInput{Quantity: d("1"), UnitPrice: d("5"), Code: TaxedOnerous, Rate: d("-1"), PriceIncludesTax: true}, shared.ErrInvalidTaxRate},
		{"overflow", LineInput{Quantity: d("1000000"), UnitPrice: d("1000000"), Code: ExemptOnerous}, shared.ErrRoundingOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeLine(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDiscountFromPercent(t *testing.T) {
	got, err := DiscountFromPercent(d("59"), d("10"))
	require.NoError(t, err)
	assert.True(t, got.Equal(d("5.9")))

	got, err = DiscountFromPercent(d("3.3333"), d("33.33"))
	require.NoError(t, err)
	assert.Equal(t, "1.1110", got.StringFixed(4))

	_, err = DiscountFromPercent(d("10"), d("101"))
	assert.Error(t, err)
}
