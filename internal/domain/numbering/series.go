package numbering

import (
	"fmt"
	"strings"
	"time"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// DefaultMaxNumber is the ceiling of an eight-digit correlative
const DefaultMaxNumber int64 = 99999999

// SeriesCodeLength is the fixed length of a series code (e.g. F001)
const SeriesCodeLength = 4

// Series is a numbering stream scoped to one business unit and one document type.
// CurrentNumber holds the last number handed out; zero means none yet.
type Series struct {
	shared.TenantAggregateRoot
	DocumentType  valueobject.DocumentType
	Code          string
	CurrentNumber int64
	MaxNumber     int64
	Active        bool
	PointOfSale   string
	Description   string
	DeactivatedAt *time.Time
}

// NewSeries creates an active series starting at zero.
// A non-positive maxNumber selects DefaultMaxNumber.
func NewSeries(tenantID uuid.UUID, docType valueobject.DocumentType, code string, maxNumber int64) (*Series, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !docType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", fmt.Sprintf("Unsupported document type: %s", docType))
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validateSeriesCode(docType, code); err != nil {
		return nil, err
	}
	if maxNumber <= 0 {
		maxNumber = DefaultMaxNumber
	}
	if maxNumber > DefaultMaxNumber {
		return nil, shared.NewDomainError("INVALID_MAX_NUMBER", fmt.Sprintf("Maximum number cannot exceed %d", DefaultMaxNumber))
	}

	s := &Series{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentType:        docType,
		Code:                code,
		CurrentNumber:       0,
		MaxNumber:           maxNumber,
		Active:              true,
	}
	s.AddDomainEvent(NewSeriesCreatedEvent(s))
	return s, nil
}

func validateSeriesCode(docType valueobject.DocumentType, code string) error {
	if len(code) != SeriesCodeLength {
		return shared.NewDomainError("INVALID_SERIES_CODE", fmt.Sprintf("Series code must have %d characters", SeriesCodeLength))
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return shared.NewDomainError("INVALID_SERIES_CODE", "Series code must be alphanumeric")
		}
	}
	for _, p := range docType.SeriesPrefixes() {
		if code[0] == p {
			return nil
		}
	}
	return shared.NewDomainError("INVALID_SERIES_CODE",
		fmt.Sprintf("Series code %s does not match document type %s", code, docType.Label()))
}

// Allocate hands out the next number. It fails without touching state when the
// series is inactive or the next number would exceed MaxNumber.
func (s *Series) Allocate() (int64, error) {
	if !s.Active {
		return 0, shared.NewDomainError(shared.ErrSeriesInactive.Code,
			fmt.Sprintf("Series %s is inactive", s.Code))
	}
	if s.CurrentNumber >= s.MaxNumber {
		return 0, shared.NewDomainError(shared.ErrSeriesExhausted.Code,
			fmt.Sprintf("Series %s reached its maximum number %d", s.Code, s.MaxNumber))
	}

	next := s.CurrentNumber + 1
	s.CurrentNumber = next
	s.Touch()
	s.AddDomainEvent(NewNumberAllocatedEvent(s, next))
	return next, nil
}

// Deactivate marks the series non-allocatable
func (s *Series) Deactivate() error {
	if !s.Active {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Series %s is already inactive", s.Code))
	}
	now := time.Now()
	s.Active = false
	s.DeactivatedAt = &now
	s.UpdatedAt = now
	s.AddDomainEvent(NewSeriesDeactivatedEvent(s))
	return nil
}

// Activate re-enables allocation
func (s *Series) Activate() error {
	if s.Active {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Series %s is already active", s.Code))
	}
	s.Active = true
	s.DeactivatedAt = nil
	s.Touch()
	s.AddDomainEvent(NewSeriesActivatedEvent(s))
	return nil
}

// RaiseCeiling lifts MaxNumber, the only way to recover an exhausted series
func (s *Series) RaiseCeiling(maxNumber int64) error {
	if maxNumber <= s.MaxNumber {
		return shared.NewDomainError("INVALID_MAX_NUMBER", "New maximum must be greater than the current maximum")
	}
	if maxNumber > DefaultMaxNumber {
		return shared.NewDomainError("INVALID_MAX_NUMBER", fmt.Sprintf("Maximum number cannot exceed %d", DefaultMaxNumber))
	}
	s.MaxNumber = maxNumber
	s.Touch()
	return nil
}

// FormatNumber renders n as the display number, e.g. F001-00000042
func (s *Series) FormatNumber(n int64) string {
	return FormatFullNumber(s.Code, n)
}

// NextFullNumber renders the number the next allocation would return
func (s *Series) NextFullNumber() string {
	return s.FormatNumber(s.CurrentNumber + 1)
}

// Remaining returns how many numbers are still available
func (s *Series) Remaining() int64 {
	return s.MaxNumber - s.CurrentNumber
}

// IsExhausted returns true when no number is left
func (s *Series) IsExhausted() bool {
	return s.CurrentNumber >= s.MaxNumber
}

// FormatFullNumber renders a series code and number as CODE-NNNNNNNN
func FormatFullNumber(code string, n int64) string {
	return fmt.Sprintf("%s-%08d", code, n)
}
