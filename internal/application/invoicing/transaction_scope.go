package invoicing

import (
	"context"

	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
)

// TransactionScope provides transactional access to the document and series repositories.
// A lifecycle command runs inside one scope: the document lock, the number allocation
// and the versioned save are committed or rolled back together, so a failed save never
// leaves a gap in the series.
type TransactionScope interface {
	// Execute runs the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories within a transaction.
type TransactionalRepositories interface {
	// DocumentRepo returns the document repository scoped to the current transaction
	DocumentRepo() invoicing.DocumentRepository
	// SeriesRepo returns the series repository scoped to the current transaction
	SeriesRepo() numbering.SeriesRepository
}

// NoOpTransactionScope runs the function directly against the given repositories.
// Useful for tests and for single-process deployments backed by the in-memory store.
type NoOpTransactionScope struct {
	documentRepo invoicing.DocumentRepository
	seriesRepo   numbering.SeriesRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(documentRepo invoicing.DocumentRepository, seriesRepo numbering.SeriesRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		documentRepo: documentRepo,
		seriesRepo:   seriesRepo,
	}
}

// Execute runs the function without a transaction.
func (s *NoOpTransactionScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// DocumentRepo returns the document repository
func (s *NoOpTransactionScope) DocumentRepo() invoicing.DocumentRepository {
	return s.documentRepo
}

// SeriesRepo returns the series repository
func (s *NoOpTransactionScope) SeriesRepo() numbering.SeriesRepository {
	return s.seriesRepo
}
