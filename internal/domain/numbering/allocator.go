package numbering

import (
	"context"
	"fmt"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ErrNumberingInvariant is returned when an allocation would repeat or skip a number
var ErrNumberingInvariant = shared.NewDomainError("NUMBERING_INVARIANT", "Series produced an out-of-sequence number")

// Allocation is the result of a successful allocation
type Allocation struct {
	SeriesID     uuid.UUID
	TenantID     uuid.UUID
	DocumentType valueobject.DocumentType
	SeriesCode   string
	Number       int64
	FullNumber   string
	Events       []shared.DomainEvent
}

// NumberAllocator hands out document numbers
type NumberAllocator interface {
	Allocate(ctx context.Context, seriesID uuid.UUID) (Allocation, error)
}

// NumberGuard reports whether a number is already used by a persisted document.
// It replaces the storage-level unique constraint on (series, number).
type NumberGuard interface {
	NumberTaken(ctx context.Context, seriesID uuid.UUID, number int64) (bool, error)
}

// Allocator owns per-series monotonic numbering on top of a SeriesRepository.
// The repository provides the atomic read-modify-write.
type Allocator struct {
	repo  SeriesRepository
	guard NumberGuard
}

// NewAllocator creates an Allocator
func NewAllocator(repo SeriesRepository) *Allocator {
	return &Allocator{repo: repo}
}

// WithGuard returns a copy of the allocator that verifies every number against guard
func (a *Allocator) WithGuard(guard NumberGuard) *Allocator {
	return &Allocator{repo: a.repo, guard: guard}
}

// Allocate atomically increments the series counter and returns the new number
func (a *Allocator) Allocate(ctx context.Context, seriesID uuid.UUID) (Allocation, error) {
	var alloc Allocation
	_, err := a.repo.Update(ctx, seriesID, func(s *Series) error {
		before := s.CurrentNumber
		n, err := s.Allocate()
		if err != nil {
			return err
		}
		if n != before+1 || n > s.MaxNumber {
			return shared.NewDomainError(ErrNumberingInvariant.Code,
				fmt.Sprintf("Series %s moved from %d to %d", s.Code, before, n))
		}
		if a.guard != nil {
			taken, err := a.guard.NumberTaken(ctx, s.ID, n)
			if err != nil {
				return fmt.Errorf("check number %d of series %s: %w", n, s.Code, err)
			}
			if taken {
				return shared.NewDomainError(ErrNumberingInvariant.Code,
					fmt.Sprintf("Number %s is already used", s.FormatNumber(n)))
			}
		}
		alloc = Allocation{
			SeriesID:     s.ID,
			TenantID:     s.TenantID,
			DocumentType: s.DocumentType,
			SeriesCode:   s.Code,
			Number:       n,
			FullNumber:   s.FormatNumber(n),
			Events:       s.GetDomainEvents(),
		}
		s.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return Allocation{}, err
	}
	return alloc, nil
}

// Deactivate marks the series non-allocatable
func (a *Allocator) Deactivate(ctx context.Context, seriesID uuid.UUID) (*Series, error) {
	return a.repo.Update(ctx, seriesID, func(s *Series) error {
		return s.Deactivate()
	})
}

// Activate re-enables a deactivated series
func (a *Allocator) Activate(ctx context.Context, seriesID uuid.UUID) (*Series, error) {
	return a.repo.Update(ctx, seriesID, func(s *Series) error {
		return s.Activate()
	})
}

// Peek returns the display number the next allocation would produce without allocating
func (a *Allocator) Peek(ctx context.Context, seriesID uuid.UUID) (string, error) {
	s, err := a.repo.FindByID(ctx, seriesID)
	if err != nil {
		return "", err
	}
	if !s.Active {
		return "", shared.NewDomainError(shared.ErrSeriesInactive.Code, fmt.Sprintf("Series %s is inactive", s.Code))
	}
	if s.IsExhausted() {
		return "", shared.NewDomainError(shared.ErrSeriesExhausted.Code,
			fmt.Sprintf("Series %s reached its maximum number %d", s.Code, s.MaxNumber))
	}
	return s.NextFullNumber(), nil
}

var _ NumberAllocator = (*Allocator)(nil)
