package valueobject

// DocumentType is the fiscal document kind (tax authority catalogue 01)
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "01" // Factura
	DocumentTypeReceipt    DocumentType = "03" // Boleta de venta
	DocumentTypeCreditNote DocumentType = "07"
	DocumentTypeDebitNote  DocumentType = "08"
)

// IsValid checks if the document type is supported
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypeReceipt, DocumentTypeCreditNote, DocumentTypeDebitNote:
		return true
	}
	return false
}

// IsNote reports whether the type corrects another document
func (t DocumentType) IsNote() bool {
	return t == DocumentTypeCreditNote || t == DocumentTypeDebitNote
}

// String returns the catalogue code
func (t DocumentType) String() string {
	return string(t)
}

// Label returns a human readable name
func (t DocumentType) Label() string {
	switch t {
	case DocumentTypeInvoice:
		return "Factura"
	case DocumentTypeReceipt:
		return "Boleta de Venta"
	case DocumentTypeCreditNote:
		return "Nota de Crédito"
	case DocumentTypeDebitNote:
		return "Nota de Débito"
	}
	return string(t)
}

// SeriesPrefixes returns the allowed first letters of a series code for the type.
// Notes inherit the prefix of the document family they correct.
func (t DocumentType) SeriesPrefixes() []byte {
	switch t {
	case DocumentTypeInvoice:
		return []byte{'F'}
	case DocumentTypeReceipt:
		return []byte{'B'}
	case DocumentTypeCreditNote, DocumentTypeDebitNote:
		return []byte{'F', 'B'}
	}
	return nil
}
