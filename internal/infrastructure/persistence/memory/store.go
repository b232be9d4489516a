// Package memory provides in-process repositories for single-node deployments
// and tests. Every value is copied on the way in and out, so callers never share
// state with the store and an aggregate only changes through a repository call.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Store holds every aggregate of the fiscal core in memory
type Store struct {
	mu        sync.RWMutex
	series    map[uuid.UUID]*numbering.Series
	documents map[uuid.UUID]invoicing.Document
	sessions  map[uuid.UUID]*pos.CashSession
	methods   map[uuid.UUID]map[string]pos.PaymentMethod

	// commandMu serializes transaction scopes
	commandMu sync.Mutex
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		series:    make(map[uuid.UUID]*numbering.Series),
		documents: make(map[uuid.UUID]invoicing.Document),
		sessions:  make(map[uuid.UUID]*pos.CashSession),
		methods:   make(map[uuid.UUID]map[string]pos.PaymentMethod),
	}
}

func cloneSeries(s *numbering.Series) *numbering.Series {
	c := *s
	c.ClearDomainEvents()
	if s.DeactivatedAt != nil {
		t := *s.DeactivatedAt
		c.DeactivatedAt = &t
	}
	return &c
}

func cloneHeader(h *invoicing.DocumentHeader) {
	h.ClearDomainEvents()
	h.Lines = append([]invoicing.LineItem(nil), h.Lines...)
	if h.Number != nil {
		n := *h.Number
		h.Number = &n
	}
	if h.AuthorityResponse != nil {
		r := *h.AuthorityResponse
		r.Notes = append([]string(nil), r.Notes...)
		h.AuthorityResponse = &r
	}
}

func cloneDocument(doc invoicing.Document) (invoicing.Document, error) {
	switch d := doc.(type) {
	case *invoicing.Invoice:
		c := *d
		cloneHeader(&c.DocumentHeader)
		return &c, nil
	case *invoicing.Receipt:
		c := *d
		cloneHeader(&c.DocumentHeader)
		return &c, nil
	case *invoicing.CreditNote:
		c := *d
		cloneHeader(&c.DocumentHeader)
		return &c, nil
	case *invoicing.DebitNote:
		c := *d
		cloneHeader(&c.DocumentHeader)
		return &c, nil
	default:
		return nil, fmt.Errorf("memory: unsupported document type %T", doc)
	}
}

// mustClone copies a document that was accepted by cloneDocument before
func mustClone(doc invoicing.Document) invoicing.Document {
	c, _ := cloneDocument(doc)
	return c
}

func cloneSession(s *pos.CashSession) *pos.CashSession {
	c := *s
	c.ClearDomainEvents()
	c.Payments = append([]pos.Payment(nil), s.Payments...)
	return &c
}

// page applies Filter paging to an already sorted slice
func page[T any](items []T, filter shared.Filter) []T {
	limit := filter.Limit()
	if limit == 0 {
		return items
	}
	start := filter.Offset()
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+limit, len(items))]
}

// sortBy orders items by the key function in the filter's direction
func sortBy[T any](items []T, desc bool, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func isDesc(filter shared.Filter) bool {
	return strings.EqualFold(strings.TrimSpace(filter.OrderDir), "desc")
}

func matches(filters map[string]interface{}, key, value string) bool {
	want, ok := filters[key]
	if !ok {
		return true
	}
	s, ok := want.(string)
	return !ok || s == value
}
