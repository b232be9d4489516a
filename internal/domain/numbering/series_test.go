package numbering

import (
	"errors"
	"testing"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSeries(t *testing.T, current, max int64) *Series {
	s, err := NewSeries(uuid.New(), valueobject.DocumentTypeInvoice, "F001", max)
	require.NoError(t, err)
	s.CurrentNumber = current
	s.ClearDomainEvents()
	return s
}

func TestNewSeries(t *testing.T) {
	tenantID := uuid.New()

	t.Run("creates active series with default ceiling", func(t *testing.T) {
		s, err := NewSeries(tenantID, valueobject.DocumentTypeReceipt, " b001 ", 0)
		require.NoError(t, err)
		assert.Equal(t, "B001", s.Code)
		assert.Equal(t, int64(0), s.CurrentNumber)
		assert.Equal(t, DefaultMaxNumber, s.MaxNumber)
		assert.True(t, s.Active)
		require.Len(t, s.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeSeriesCreated, s.GetDomainEvents()[0].EventType())
	})

	tests := []struct {
		name    string
		docType valueobject.DocumentType
		code    string
		max     int64
	}{
		{"invoice with receipt prefix", valueobject.DocumentTypeInvoice, "B001", 0},
		{"receipt with invoice prefix", valueobject.DocumentTypeReceipt, "F001", 0},
		{"too short", valueobject.DocumentTypeInvoice, "F01", 0},
		{"symbols", valueobject.DocumentTypeInvoice, "F-01", 0},
		{"unknown type", valueobject.DocumentType("99"), "F001", 0},
		{"ceiling above eight digits", valueobject.DocumentTypeInvoice, "F001", DefaultMaxNumber + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSeries(tenantID, tt.docType, tt.code, tt.max)
			assert.Error(t, err)
		})
	}

	t.Run("credit note accepts either family", func(t *testing.T) {
		_, err := NewSeries(tenantID, valueobject.DocumentTypeCreditNote, "FC01", 0)
		assert.NoError(t, err)
		_, err = NewSeries(tenantID, valueobject.DocumentTypeCreditNote, "BC01", 0)
		assert.NoError(t, err)
	})

	t.Run("rejects nil tenant", func(t *testing.T) {
		_, err := NewSeries(uuid.Nil, valueobject.DocumentTypeInvoice, "F001", 0)
		assert.Error(t, err)
	})
}

func TestSeries_Allocate(t *testing.T) {
	t.Run("returns next number and persists it", func(t *testing.T) {
		s := newTestSeries(t, 5, 10)
		n, err := s.Allocate()
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
		assert.Equal(t, int64(6), s.CurrentNumber)
		require.Len(t, s.GetDomainEvents(), 1)
		evt := s.GetDomainEvents()[0].(*NumberAllocatedEvent)
		assert.Equal(t, "F001-00000006", evt.FullNumber)
		assert.Equal(t, int64(4), evt.Remaining)
	})

	t.Run("fails when exhausted and leaves state unchanged", func(t *testing.T) {
		s := newTestSeries(t, 10, 10)
		_, err := s.Allocate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrSeriesExhausted))
		assert.Equal(t, int64(10), s.CurrentNumber)
		assert.Empty(t, s.GetDomainEvents())
	})

	t.Run("fails when inactive", func(t *testing.T) {
		s := newTestSeries(t, 0, 10)
		require.NoError(t, s.Deactivate())
		_, err := s.Allocate()
		assert.True(t, errors.Is(err, shared.ErrSeriesInactive))
		assert.Equal(t, int64(0), s.CurrentNumber)
	})

	t.Run("first allocation returns one", func(t *testing.T) {
		s := newTestSeries(t, 0, 10)
		n, err := s.Allocate()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestSeries_ActivateDeactivate(t *testing.T) {
	s := newTestSeries(t, 3, 10)

	require.NoError(t, s.Deactivate())
	assert.False(t, s.Active)
	assert.NotNil(t, s.DeactivatedAt)
	assert.Error(t, s.Deactivate())

	require.NoError(t, s.Activate())
	assert.True(t, s.Active)
	assert.Nil(t, s.DeactivatedAt)
	assert.Error(t, s.Activate())

	n, err := s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestSeries_RaiseCeiling(t *testing.T) {
	s := newTestSeries(t, 10, 10)
	assert.True(t, s.IsExhausted())

	assert.Error(t, s.RaiseCeiling(10))
	assert.Error(t, s.RaiseCeiling(DefaultMaxNumber+1))
	require.NoError(t, s.RaiseCeiling(20))

	n, err := s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, int64(9), s.Remaining())
}

func TestFormatFullNumber(t *testing.T) {
	assert.Equal(t, "F001-00000001", FormatFullNumber("F001", 1))
	assert.Equal(t, "B002-99999999", FormatFullNumber("B002", 99999999))

	s := newTestSeries(t, 41, 100)
	assert.Equal(t, "F001-00000042", s.NextFullNumber())
}
