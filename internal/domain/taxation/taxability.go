package taxation

import "fmt"

// TaxabilityCode is the per-line tax affectation code (tax authority catalogue 07)
type TaxabilityCode string

const (
	TaxedOnerous            TaxabilityCode = "10"
	TaxedWithdrawalPrize    TaxabilityCode = "11"
	TaxedWithdrawalDonation TaxabilityCode = "12"
	TaxedWithdrawal         TaxabilityCode = "13"
	TaxedWithdrawalAds      TaxabilityCode = "14"
	TaxedBonus              TaxabilityCode = "15"
	TaxedWithdrawalWorkers  TaxabilityCode = "16"
	TaxedIVAP               TaxabilityCode = "17"
	ExemptOnerous           TaxabilityCode = "20"
	ExemptFree              TaxabilityCode = "21"
	UnaffectedOnerous       TaxabilityCode = "30"
	UnaffectedBonus         TaxabilityCode = "31"
	UnaffectedWithdrawal    TaxabilityCode = "32"
	UnaffectedSamples       TaxabilityCode = "33"
	UnaffectedCollective    TaxabilityCode = "34"
	UnaffectedPrize         TaxabilityCode = "35"
	UnaffectedAds           TaxabilityCode = "36"
	Export                  TaxabilityCode = "40"
)

// TaxClass is the regime a taxability code belongs to
type TaxClass string

const (
	ClassTaxed      TaxClass = "TAXED"
	ClassExempt     TaxClass = "EXEMPT"
	ClassUnaffected TaxClass = "UNAFFECTED"
	ClassExport     TaxClass = "EXPORT"
)

var classByCode = map[TaxabilityCode]TaxClass{
	TaxedOnerous:            ClassTaxed,
	TaxedWithdrawalPrize:    ClassTaxed,
	TaxedWithdrawalDonation: ClassTaxed,
	TaxedWithdrawal:         ClassTaxed,
	TaxedWithdrawalAds:      ClassTaxed,
	TaxedBonus:              ClassTaxed,
	TaxedWithdrawalWorkers:  ClassTaxed,
	TaxedIVAP:               ClassTaxed,
	ExemptOnerous:           ClassExempt,
	ExemptFree:              ClassExempt,
	UnaffectedOnerous:       ClassUnaffected,
	UnaffectedBonus:         ClassUnaffected,
	UnaffectedWithdrawal:    ClassUnaffected,
	UnaffectedSamples:       ClassUnaffected,
	UnaffectedCollective:    ClassUnaffected,
	UnaffectedPrize:         ClassUnaffected,
	UnaffectedAds:           ClassUnaffected,
	Export:                  ClassExport,
}

// Class returns the regime of the code, or an error for unknown codes
func (c TaxabilityCode) Class() (TaxClass, error) {
	class, ok := classByCode[c]
	if !ok {
		return "", fmt.Errorf("unknown taxability code %q", string(c))
	}
	return class, nil
}

// IsValid checks if the code is in the catalogue
func (c TaxabilityCode) IsValid() bool {
	_, ok := classByCode[c]
	return ok
}

// IsTaxed returns true for codes whose lines carry tax
func (c TaxabilityCode) IsTaxed() bool {
	return classByCode[c] == ClassTaxed
}

// String returns the catalogue code
func (c TaxabilityCode) String() string {
	return string(c)
}
