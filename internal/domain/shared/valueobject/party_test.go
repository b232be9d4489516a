package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParty(t *testing.T) {
	tests := []struct {
		name      string
		idType    IdentityType
		idNumber  string
		partyName string
		wantErr   bool
	}{
		{"valid RUC", IdentityRUC, "20123456789", "ACME SAC", false},
		{"RUC too short", IdentityRUC, "2012345678", "ACME SAC", true},
		{"RUC with letters", IdentityRUC, "2012345678A", "ACME SAC", true},
		{"valid DNI", IdentityDNI, "12345678", "Juan Perez", false},
		{"DNI too long", IdentityDNI, "123456789", "Juan Perez", true},
		{"passport", IdentityPassport, "AB123456", "John Doe", false},
		{"passport empty", IdentityPassport, "", "John Doe", true},
		{"missing name", IdentityDNI, "12345678", "", true},
		{"no document", IdentityNone, "", "", false},
		{"unknown type", IdentityType("9"), "1", "X", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParty(tt.idType, tt.idNumber, tt.partyName, "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.idType, p.IdentityType())
		})
	}
}

func TestParty_Predicates(t *testing.T) {
	ruc, err := NewParty(IdentityRUC, "20123456789", " ACME SAC ", "Av. Lima 123")
	require.NoError(t, err)
	assert.True(t, ruc.HasRUC())
	assert.False(t, ruc.IsAnonymous())
	assert.Equal(t, "ACME SAC", ruc.Name())
	assert.Equal(t, "Av. Lima 123", ruc.Address())

	anon := AnonymousParty()
	assert.True(t, anon.IsAnonymous())
	assert.False(t, anon.IsEmpty())

	assert.True(t, Party{}.IsEmpty())
}
