package invoicing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentStatus_IsValid(t *testing.T) {
	for _, s := range []DocumentStatus{
		DocumentStatusDraft, DocumentStatusValidated, DocumentStatusSubmitted,
		DocumentStatusAccepted, DocumentStatusRejected, DocumentStatusVoided,
	} {
		assert.True(t, s.IsValid(), s.String())
	}
	assert.False(t, DocumentStatus("PRINTED").IsValid())
	assert.False(t, DocumentStatus("").IsValid())
}

func TestDocumentStatus_Next(t *testing.T) {
	tests := []struct {
		from   DocumentStatus
		action DocumentAction
		to     DocumentStatus
		ok     bool
	}{
		{DocumentStatusDraft, ActionValidate, DocumentStatusValidated, true},
		{DocumentStatusValidated, ActionSubmit, DocumentStatusSubmitted, true},
		{DocumentStatusSubmitted, ActionAuthorityAccept, DocumentStatusAccepted, true},
		{DocumentStatusSubmitted, ActionAuthorityReject, DocumentStatusRejected, true},
		{DocumentStatusRejected, ActionReset, DocumentStatusDraft, true},
		{DocumentStatusAccepted, ActionVoid, DocumentStatusVoided, true},
		{DocumentStatusValidated, ActionEdit, DocumentStatusDraft, true},
		{DocumentStatusDraft, ActionVoid, "", false},
		{DocumentStatusDraft, ActionSubmit, "", false},
		{DocumentStatusSubmitted, ActionEdit, "", false},
		{DocumentStatusAccepted, ActionReset, "", false},
		{DocumentStatusRejected, ActionSubmit, "", false},
		{DocumentStatusVoided, ActionVoid, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.action), func(t *testing.T) {
			to, ok := tt.from.Next(tt.action)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.to, to)
			}
		})
	}
}

func TestDocumentStatus_Predicates(t *testing.T) {
	assert.True(t, DocumentStatusDraft.CanModify())
	assert.True(t, DocumentStatusValidated.CanModify())
	assert.False(t, DocumentStatusSubmitted.CanModify())
	assert.False(t, DocumentStatusAccepted.CanModify())

	assert.True(t, DocumentStatusAccepted.CanVoid())
	assert.False(t, DocumentStatusDraft.CanVoid())

	assert.True(t, DocumentStatusVoided.IsTerminal())
	assert.False(t, DocumentStatusAccepted.IsTerminal())
	assert.True(t, DocumentStatusSubmitted.AwaitsAuthority())

	assert.True(t, DocumentStatusDraft.CanTransitionTo(DocumentStatusValidated))
	assert.False(t, DocumentStatusValidated.CanTransitionTo(DocumentStatusDraft))
	assert.False(t, DocumentStatusDraft.CanTransitionTo(DocumentStatusVoided))
}
