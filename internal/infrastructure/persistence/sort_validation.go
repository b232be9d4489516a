package persistence

import (
	"strings"

	"github.com/felicita/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// SeriesSortFields contains allowed sort fields for numbering series
var SeriesSortFields = map[string]bool{
	"code":           true,
	"document_type":  true,
	"current_number": true,
	"created_at":     true,
}

// DocumentSortFields contains allowed sort fields for fiscal documents
var DocumentSortFields = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"issue_date":  true,
	"full_number": true,
	"grand_total": true,
	"status":      true,
}

// CashSessionSortFields contains allowed sort fields for cash sessions
var CashSessionSortFields = map[string]bool{
	"created_at":     true,
	"opened_at":      true,
	"closed_at":      true,
	"session_number": true,
}

// applyPagination orders by a whitelisted column and applies offset/limit.
// The id tiebreaker keeps pages stable when sort values repeat.
func applyPagination(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir)).Order("id ASC")
	if limit := filter.Limit(); limit > 0 {
		query = query.Offset(filter.Offset()).Limit(limit)
	}
	return query
}
