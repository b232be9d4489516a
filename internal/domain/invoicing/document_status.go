package invoicing

// DocumentStatus represents the lifecycle state of a fiscal document
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusValidated DocumentStatus = "VALIDATED"
	DocumentStatusSubmitted DocumentStatus = "SUBMITTED"
	DocumentStatusAccepted  DocumentStatus = "ACCEPTED"
	DocumentStatusRejected  DocumentStatus = "REJECTED"
	DocumentStatusVoided    DocumentStatus = "VOIDED"
)

// DocumentAction is an event that drives a lifecycle transition
type DocumentAction string

const (
	ActionValidate        DocumentAction = "validate"
	ActionSubmit          DocumentAction = "submit"
	ActionAuthorityAccept DocumentAction = "authority_accept"
	ActionAuthorityReject DocumentAction = "authority_reject"
	ActionReset           DocumentAction = "reset"
	ActionVoid            DocumentAction = "void"
	ActionEdit            DocumentAction = "edit"
)

// transitions is the complete lifecycle table; any pair not listed is illegal.
// Editing a validated document sends it back to draft.
var transitions = map[DocumentStatus]map[DocumentAction]DocumentStatus{
	DocumentStatusDraft: {
		ActionValidate: DocumentStatusValidated,
		ActionEdit:     DocumentStatusDraft,
	},
	DocumentStatusValidated: {
		ActionSubmit: DocumentStatusSubmitted,
		ActionEdit:   DocumentStatusDraft,
	},
	DocumentStatusSubmitted: {
		ActionAuthorityAccept: DocumentStatusAccepted,
		ActionAuthorityReject: DocumentStatusRejected,
	},
	DocumentStatusRejected: {
		ActionReset: DocumentStatusDraft,
	},
	DocumentStatusAccepted: {
		ActionVoid: DocumentStatusVoided,
	},
}

// IsValid checks if the status is a valid DocumentStatus
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusValidated, DocumentStatusSubmitted,
		DocumentStatusAccepted, DocumentStatusRejected, DocumentStatusVoided:
		return true
	}
	return false
}

// String returns the string representation of DocumentStatus
func (s DocumentStatus) String() string {
	return string(s)
}

// Next returns the status reached by applying action, and false if the action is illegal
func (s DocumentStatus) Next(action DocumentAction) (DocumentStatus, bool) {
	next, ok := transitions[s][action]
	return next, ok
}

// CanTransitionTo checks if some action leads from s to target
func (s DocumentStatus) CanTransitionTo(target DocumentStatus) bool {
	for action, next := range transitions[s] {
		if next == target && action != ActionEdit {
			return true
		}
	}
	return false
}

// CanModify returns true while lines and totals may still change
func (s DocumentStatus) CanModify() bool {
	return s == DocumentStatusDraft || s == DocumentStatusValidated
}

// CanVoid returns true only for accepted documents
func (s DocumentStatus) CanVoid() bool {
	return s == DocumentStatusAccepted
}

// IsTerminal returns true if no further action is possible
func (s DocumentStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// AwaitsAuthority returns true while the authority outcome is pending
func (s DocumentStatus) AwaitsAuthority() bool {
	return s == DocumentStatusSubmitted
}
