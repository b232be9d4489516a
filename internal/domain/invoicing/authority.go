package invoicing

import (
	"encoding/json"
	"strings"
	"time"
)

// AuthorityResponse is the tax authority's verdict on a submitted document, kept verbatim.
// The transport collaborator builds it from the authority reply (CDR).
type AuthorityResponse struct {
	Accepted    bool            `json:"accepted"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Notes       []string        `json:"notes,omitempty"`
	TicketID    string          `json:"ticket_id,omitempty"`
	CDRDigest   string          `json:"cdr_digest,omitempty"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// HasObservations returns true when an accepted document came back with notes
func (r AuthorityResponse) HasObservations() bool {
	return r.Accepted && len(r.Notes) > 0
}

// Summary renders code and description for logs and audit entries
func (r AuthorityResponse) Summary() string {
	parts := []string{}
	if r.Code != "" {
		parts = append(parts, r.Code)
	}
	if r.Description != "" {
		parts = append(parts, r.Description)
	}
	return strings.Join(parts, " - ")
}
