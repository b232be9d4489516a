package numbering

import (
	"time"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/google/uuid"
)

// CreateSeriesRequest opens a numbering series
type CreateSeriesRequest struct {
	DocumentType string `json:"document_type" validate:"required,oneof=01 03 07 08"`
	Code         string `json:"code" validate:"required,len=4,alphanum"`
	MaxNumber    int64  `json:"max_number" validate:"gte=0"`
	PointOfSale  string `json:"point_of_sale" validate:"max=50"`
	Description  string `json:"description" validate:"max=200"`
}

// RaiseCeilingRequest lifts the maximum number of a series
type RaiseCeilingRequest struct {
	MaxNumber int64 `json:"max_number" validate:"required,gt=0"`
}

// SeriesListFilter represents filter options for series list
type SeriesListFilter struct {
	DocumentType string `json:"document_type" validate:"omitempty,oneof=01 03 07 08"`
	Active       *bool  `json:"active"`
	Page         int    `json:"page" validate:"gte=0"`
	PageSize     int    `json:"page_size" validate:"gte=0,lte=100"`
}

// SeriesResponse is the read model of a series
type SeriesResponse struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	DocumentType   string     `json:"document_type"`
	Code           string     `json:"code"`
	CurrentNumber  int64      `json:"current_number"`
	MaxNumber      int64      `json:"max_number"`
	Remaining      int64      `json:"remaining"`
	NextFullNumber string     `json:"next_full_number,omitempty"`
	Active         bool       `json:"active"`
	PointOfSale    string     `json:"point_of_sale,omitempty"`
	Description    string     `json:"description,omitempty"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AllocationResponse is the result of a standalone allocation
type AllocationResponse struct {
	SeriesID     uuid.UUID `json:"series_id"`
	DocumentType string    `json:"document_type"`
	SeriesCode   string    `json:"series_code"`
	Number       int64     `json:"number"`
	FullNumber   string    `json:"full_number"`
}

// ToSeriesResponse converts a domain series to a response DTO
func ToSeriesResponse(s *numbering.Series) SeriesResponse {
	resp := SeriesResponse{
		ID:            s.ID,
		TenantID:      s.TenantID,
		DocumentType:  string(s.DocumentType),
		Code:          s.Code,
		CurrentNumber: s.CurrentNumber,
		MaxNumber:     s.MaxNumber,
		Remaining:     s.Remaining(),
		Active:        s.Active,
		PointOfSale:   s.PointOfSale,
		Description:   s.Description,
		DeactivatedAt: s.DeactivatedAt,
		Version:       s.Version,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.Active && !s.IsExhausted() {
		resp.NextFullNumber = s.NextFullNumber()
	}
	return resp
}

// ToAllocationResponse converts an allocation to a response DTO
func ToAllocationResponse(a numbering.Allocation) AllocationResponse {
	return AllocationResponse{
		SeriesID:     a.SeriesID,
		DocumentType: string(a.DocumentType),
		SeriesCode:   a.SeriesCode,
		Number:       a.Number,
		FullNumber:   a.FullNumber,
	}
}
