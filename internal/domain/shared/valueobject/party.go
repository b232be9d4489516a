package valueobject

import (
	"fmt"
	"strings"
)

// IdentityType is the customer identity document kind (tax authority catalogue 06)
type IdentityType string

const (
	IdentityNone     IdentityType = "0" // No document (anonymous receipts)
	IdentityDNI      IdentityType = "1" // National identity card
	IdentityForeign  IdentityType = "4" // Foreigner card
	IdentityRUC      IdentityType = "6" // Taxpayer registry
	IdentityPassport IdentityType = "7"
)

// IsValid checks if the identity type is known
func (t IdentityType) IsValid() bool {
	switch t {
	case IdentityNone, IdentityDNI, IdentityForeign, IdentityRUC, IdentityPassport:
		return true
	}
	return false
}

// Party is the customer as printed on a fiscal document
type Party struct {
	identityType   IdentityType
	identityNumber string
	name           string
	address        string
}

// NewParty creates a validated Party.
// RUC numbers must have 11 digits and DNI numbers 8 digits.
func NewParty(identityType IdentityType, identityNumber, name, address string) (Party, error) {
	identityNumber = strings.TrimSpace(identityNumber)
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)

	if !identityType.IsValid() {
		return Party{}, fmt.Errorf("invalid identity type: %s", identityType)
	}
	switch identityType {
	case IdentityRUC:
		if !isDigits(identityNumber, 11) {
			return Party{}, fmt.Errorf("RUC must have 11 digits")
		}
	case IdentityDNI:
		if !isDigits(identityNumber, 8) {
			return Party{}, fmt.Errorf("DNI must have 8 digits")
		}
	case IdentityNone:
	default:
		if identityNumber == "" || len(identityNumber) > 20 {
			return Party{}, fmt.Errorf("identity number must be between 1 and 20 characters")
		}
	}
	if identityType != IdentityNone && name == "" {
		return Party{}, fmt.Errorf("party name cannot be empty")
	}
	if len(name) > 200 {
		return Party{}, fmt.Errorf("party name cannot exceed 200 characters")
	}

	return Party{
		identityType:   identityType,
		identityNumber: identityNumber,
		name:           name,
		address:        address,
	}, nil
}

// RestoreParty rebuilds a Party from storage without validation
func RestoreParty(identityType IdentityType, identityNumber, name, address string) Party {
	return Party{
		identityType:   identityType,
		identityNumber: identityNumber,
		name:           name,
		address:        address,
	}
}

// AnonymousParty returns the party used on receipts issued without customer identity
func AnonymousParty() Party {
	return Party{identityType: IdentityNone, name: "CLIENTES VARIOS"}
}

// IdentityType returns the identity document kind
func (p Party) IdentityType() IdentityType {
	return p.identityType
}

// IdentityNumber returns the identity document number
func (p Party) IdentityNumber() string {
	return p.identityNumber
}

// Name returns the legal or personal name
func (p Party) Name() string {
	return p.name
}

// Address returns the fiscal address
func (p Party) Address() string {
	return p.address
}

// IsEmpty returns true for the zero Party
func (p Party) IsEmpty() bool {
	return p.identityType == ""
}

// IsAnonymous returns true if the party carries no identity document
func (p Party) IsAnonymous() bool {
	return p.identityType == IdentityNone
}

// HasRUC returns true if the party is identified by a taxpayer number
func (p Party) HasRUC() bool {
	return p.identityType == IdentityRUC
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
