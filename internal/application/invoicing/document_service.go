package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/felicita/backend/internal/application/validation"
	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/domain/taxation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Metrics records issuance activity; implemented by the telemetry package
type Metrics interface {
	RecordAllocation(ctx context.Context, tenantID uuid.UUID, seriesCode string, err error)
	RecordTransition(ctx context.Context, tenantID uuid.UUID, docType, from, to string)
}

// Settings are the tenant-independent issuing defaults
type Settings struct {
	DefaultTaxRate        decimal.Decimal
	AnonymousReceiptLimit decimal.Decimal
}

// DefaultSettings returns the statutory defaults
func DefaultSettings() Settings {
	return Settings{
		DefaultTaxRate:        taxation.DefaultIGVRate,
		AnonymousReceiptLimit: invoicing.DefaultAnonymousReceiptLimit,
	}
}

// DocumentService handles fiscal document business operations
type DocumentService struct {
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	settings       Settings
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(txScope TransactionScope, settings Settings, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.DefaultTaxRate.IsZero() {
		settings.DefaultTaxRate = taxation.DefaultIGVRate
	}
	if settings.AnonymousReceiptLimit.IsZero() {
		settings.AnonymousReceiptLimit = invoicing.DefaultAnonymousReceiptLimit
	}
	return &DocumentService{
		txScope:  txScope,
		logger:   logger,
		settings: settings,
	}
}

// SetEventPublisher sets the event publisher for audit and transport collaborators
func (s *DocumentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *DocumentService) SetMetrics(metrics Metrics) {
	s.metrics = metrics
}

// Create opens a draft document, optionally with its first line batch
func (s *DocumentService) Create(ctx context.Context, tenantID uuid.UUID, req CreateDocumentRequest) (*DocumentResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	docType := valueobject.DocumentType(req.DocumentType)

	var party valueobject.Party
	if req.Customer != nil {
		p, err := req.Customer.ToParty()
		if err != nil {
			return nil, shared.NewDomainError(shared.ErrMissingParty.Code, err.Error())
		}
		party = p
	}

	var (
		doc    invoicing.Document
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		series, err := repos.SeriesRepo().FindByID(ctx, req.SeriesID)
		if err != nil {
			return err
		}
		if series.TenantID != tenantID {
			return shared.ErrNotFound
		}
		if series.DocumentType != docType {
			return shared.NewDomainError("INVALID_SERIES",
				fmt.Sprintf("Series %s numbers %s documents", series.Code, series.DocumentType.Label()))
		}
		if !series.Active {
			return shared.NewDomainError(shared.ErrSeriesInactive.Code, fmt.Sprintf("Series %s is inactive", series.Code))
		}

		params := invoicing.NewDocumentParams{
			TenantID:     tenantID,
			Series:       invoicing.SeriesRef{ID: series.ID, Code: series.Code},
			CustomerID:   req.CustomerID,
			Customer:     party,
			Currency:     valueobject.Currency(req.Currency),
			ExchangeRate: req.ExchangeRate,
		}
		if req.Correction != nil {
			correction, err := s.resolveCorrection(ctx, repos, tenantID, *req.Correction)
			if err != nil {
				return err
			}
			params.Correction = &correction
		}

		d, err := invoicing.NewDocument(docType, params)
		if err != nil {
			return err
		}
		if r, ok := d.(*invoicing.Receipt); ok {
			r.AnonymousLimit = s.settings.AnonymousReceiptLimit
		}
		h := d.Header()
		if req.DueDate != nil {
			if err := h.SetDueDate(req.DueDate); err != nil {
				return err
			}
		}
		if len(req.Lines) > 0 {
			specs, err := s.toLineSpecs(req.Lines)
			if err != nil {
				return err
			}
			if err := h.ReplaceLines(specs); err != nil {
				return err
			}
		}
		if req.GlobalDiscount != nil {
			if err := h.SetGlobalDiscount(*req.GlobalDiscount); err != nil {
				return err
			}
		}
		if req.Notes != "" {
			if err := h.SetNotes(req.Notes); err != nil {
				return err
			}
		}

		if err := repos.DocumentRepo().Create(ctx, d); err != nil {
			return err
		}
		doc = d
		events = d.GetDomainEvents()
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to create fiscal document",
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_type", req.DocumentType),
			zap.String("series_id", req.SeriesID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	doc.ClearDomainEvents()

	s.logger.Info("fiscal document created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_id", doc.Header().ID.String()),
		zap.String("document_type", req.DocumentType),
		zap.String("series", doc.Header().SeriesCode),
	)
	s.publish(ctx, events)
	s.recordTransition(ctx, doc, "")

	response := ToDocumentResponse(doc)
	return &response, nil
}

// resolveCorrection links a note to the document it modifies when that document is known here
func (s *DocumentService) resolveCorrection(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, in CorrectionInput) (invoicing.Correction, error) {
	correction := invoicing.Correction{
		DocumentID:   in.DocumentID,
		DocumentType: valueobject.DocumentType(in.DocumentType),
		FullNumber:   in.FullNumber,
		ReasonCode:   in.ReasonCode,
		Reason:       in.Reason,
	}

	var (
		target invoicing.Document
		err    error
	)
	if in.DocumentID != nil {
		target, err = repos.DocumentRepo().FindByIDForTenant(ctx, tenantID, *in.DocumentID)
	} else {
		target, err = repos.DocumentRepo().FindByFullNumber(ctx, tenantID, in.FullNumber)
	}
	if errors.Is(err, shared.ErrNotFound) && in.DocumentID == nil {
		// Issued outside this system; the number is taken as given.
		return correction, nil
	}
	if err != nil {
		return correction, err
	}

	h := target.Header()
	if h.DocumentType != correction.DocumentType || h.FullNumber == "" {
		return correction, shared.NewDomainError("INVALID_CORRECTION",
			fmt.Sprintf("Document %s is not a numbered %s", in.FullNumber, correction.DocumentType.Label()))
	}
	if h.Status != invoicing.DocumentStatusAccepted {
		return correction, shared.NewDomainError("INVALID_CORRECTION",
			fmt.Sprintf("Only accepted documents can be corrected, %s is %s", h.FullNumber, h.Status))
	}
	id := h.ID
	correction.DocumentID = &id
	correction.FullNumber = h.FullNumber
	return correction, nil
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentResponse, error) {
	var doc invoicing.Document
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		d, err := repos.DocumentRepo().FindByIDForTenant(ctx, tenantID, documentID)
		doc = d
		return err
	})
	if err != nil {
		return nil, err
	}
	response := ToDocumentResponse(doc)
	return &response, nil
}

// GetByFullNumber retrieves a numbered document by its series-number string
func (s *DocumentService) GetByFullNumber(ctx context.Context, tenantID uuid.UUID, fullNumber string) (*DocumentResponse, error) {
	var doc invoicing.Document
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		d, err := repos.DocumentRepo().FindByFullNumber(ctx, tenantID, fullNumber)
		doc = d
		return err
	})
	if err != nil {
		return nil, err
	}
	response := ToDocumentResponse(doc)
	return &response, nil
}

// List retrieves a list of documents with filtering and pagination
func (s *DocumentService) List(ctx context.Context, tenantID uuid.UUID, filter DocumentListFilter) ([]DocumentListItemResponse, int64, error) {
	if err := validation.Struct(filter); err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  make(map[string]interface{}),
	}
	if filter.DocumentType != "" {
		domainFilter.Filters["document_type"] = filter.DocumentType
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}
	if filter.SeriesCode != "" {
		domainFilter.Filters["series_code"] = filter.SeriesCode
	}

	var (
		docs  []invoicing.Document
		total int64
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		docs, total, err = repos.DocumentRepo().FindAllForTenant(ctx, tenantID, domainFilter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	items := make([]DocumentListItemResponse, len(docs))
	for i, d := range docs {
		items[i] = ToDocumentListItemResponse(d)
	}
	return items, total, nil
}

// AddLines appends a line batch to a draft or validated document
func (s *DocumentService) AddLines(ctx context.Context, tenantID, documentID uuid.UUID, lines []AddLineRequest) (*DocumentResponse, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "At least one line is required")
	}
	for _, l := range lines {
		if err := validation.Struct(l); err != nil {
			return nil, err
		}
	}
	specs, err := s.toLineSpecs(lines)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, documentID, "add_lines", func(_ TransactionalRepositories, doc invoicing.Document) error {
		h := doc.Header()
		all := make([]invoicing.LineSpec, 0, len(h.Lines)+len(specs))
		for _, l := range h.Lines {
			all = append(all, lineSpecOf(l))
		}
		all = append(all, specs...)
		return h.ReplaceLines(all)
	})
}

// ReplaceLines swaps the whole line set of a document
func (s *DocumentService) ReplaceLines(ctx context.Context, tenantID, documentID uuid.UUID, req ReplaceLinesRequest) (*DocumentResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	specs, err := s.toLineSpecs(req.Lines)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, documentID, "replace_lines", func(_ TransactionalRepositories, doc invoicing.Document) error {
		return doc.Header().ReplaceLines(specs)
	})
}

// UpdateLine replaces the inputs of one line
func (s *DocumentService) UpdateLine(ctx context.Context, tenantID, documentID, lineID uuid.UUID, req AddLineRequest) (*DocumentResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	spec, err := req.ToLineSpec(s.settings.DefaultTaxRate)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, documentID, "update_line", func(_ TransactionalRepositories, doc invoicing.Document) error {
		return doc.Header().UpdateLine(lineID, spec)
	})
}

// RemoveLine drops one line
func (s *DocumentService) RemoveLine(ctx context.Context, tenantID, documentID, lineID uuid.UUID) (*DocumentResponse, error) {
	return s.mutate(ctx, tenantID, documentID, "remove_line", func(_ TransactionalRepositories, doc invoicing.Document) error {
		return doc.Header().RemoveLine(lineID)
	})
}

// SetAdjustments updates discount, surcharge and other taxes
func (s *DocumentService) SetAdjustments(ctx context.Context, tenantID, documentID uuid.UUID, req AdjustmentsRequest) (*DocumentResponse, error) {
	return s.mutate(ctx, tenantID, documentID, "set_adjustments", func(_ TransactionalRepositories, doc invoicing.Document) error {
		h := doc.Header()
		if req.GlobalDiscount != nil {
			if err := h.SetGlobalDiscount(*req.GlobalDiscount); err != nil {
				return err
			}
		}
		if req.Surcharge != nil {
			if err := h.SetSurcharge(*req.Surcharge); err != nil {
				return err
			}
		}
		if req.OtherTaxes != nil {
			if err := h.SetOtherTaxes(*req.OtherTaxes); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetInvoiceTerms updates payment terms, purchase order and detraction of an invoice
func (s *DocumentService) SetInvoiceTerms(ctx context.Context, tenantID, documentID uuid.UUID, req InvoiceTermsRequest) (*DocumentResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, documentID, "set_invoice_terms", func(_ TransactionalRepositories, doc invoicing.Document) error {
		inv, ok := doc.(*invoicing.Invoice)
		if !ok {
			return shared.NewDomainError("INVALID_DOCUMENT_TYPE", "Only invoices carry payment terms and detraction")
		}
		if req.PaymentCondition != "" {
			if err := inv.SetPaymentTerms(invoicing.PaymentCondition(req.PaymentCondition), req.CreditDays); err != nil {
				return err
			}
		}
		if req.PurchaseOrder != nil {
			if err := inv.SetPurchaseOrder(*req.PurchaseOrder); err != nil {
				return err
			}
		}
		if req.ClearDetraction {
			return inv.ClearDetraction()
		}
		if req.DetractionPercent != nil {
			return inv.SetDetraction(req.DetractionCode, *req.DetractionPercent)
		}
		return nil
	})
}

// RecomputeTotals re-derives lines and totals from the line inputs
func (s *DocumentService) RecomputeTotals(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentResponse, error) {
	return s.mutate(ctx, tenantID, documentID, "recompute", func(_ TransactionalRepositories, doc invoicing.Document) error {
		return doc.RecomputeTotals()
	})
}

// Validate runs draft → validated
func (s *DocumentService) Validate(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentResponse, error) {
	return s.mutate(ctx, tenantID, documentID, "validate", func(_ TransactionalRepositories, doc invoicing.Document) error {
		return doc.Validate()
	})
}

// Submit runs validated → submitted. The number is allocated in the same
// transaction as the document save, so a failed save releases it.
func (s *DocumentService) Submit(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentResponse, error) {
	var seriesCode string
	resp, err := s.mutate(ctx, tenantID, documentID, "submit", func(repos TransactionalRepositories, doc invoicing.Document) error {
		h := doc.Header()
		seriesCode = h.SeriesCode
		allocates := !h.IsNumbered() && h.Status == invoicing.DocumentStatusValidated
		allocator := numbering.NewAllocator(repos.SeriesRepo()).WithGuard(repos.DocumentRepo())
		err := doc.Submit(ctx, allocator)
		if allocates && s.metrics != nil {
			s.metrics.RecordAllocation(ctx, tenantID, seriesCode, err)
		}
		return err
	})
	if err != nil && errors.Is(err, shared.ErrSeriesExhausted) {
		s.logger.Error("numbering series exhausted",
			zap.String("tenant_id", tenantID.String()),
			zap.String("series", seriesCode),
		)
	}
	return resp, err
}

// ApplyAuthorityResponse records the single accept or reject outcome of a submitted document
func (s *DocumentService) ApplyAuthorityResponse(ctx context.Context, tenantID, documentID uuid.UUID, req AuthorityResponseRequest) (*DocumentResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	resp := req.ToAuthorityResponse()
	return s.mutate(ctx, tenantID, documentID, "authority_response", func(_ TransactionalRepositories, doc invoicing.Document) error {
		return doc.ApplyAuthorityResponse(resp)
	})
}

// Reset returns a rejected document to draft for correction
func (s *DocumentService) Reset(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentResponse, error) {
	return s.mutate(ctx, tenantID, documentID, "reset", func(_ TransactionalRepositories, doc invoicing.Document) error {
		return doc.Reset()
	})
}

// Void cancels an accepted document. The correcting document must be a credit
// note of the same tenant that references the voided document's number.
func (s *DocumentService) Void(ctx context.Context, tenantID, documentID uuid.UUID, req VoidDocumentRequest) (*DocumentResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, documentID, "void", func(repos TransactionalRepositories, doc invoicing.Document) error {
		if !doc.CanVoid() {
			return doc.Void(req.CorrectingDocumentID, req.Reason)
		}
		correcting, err := repos.DocumentRepo().FindByIDForTenant(ctx, tenantID, req.CorrectingDocumentID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError(shared.ErrMissingCorrection.Code, "Correcting document not found")
			}
			return err
		}
		note, ok := correcting.(*invoicing.CreditNote)
		if !ok {
			return shared.NewDomainError(shared.ErrMissingCorrection.Code, "The correcting document must be a credit note")
		}
		if note.Correction.FullNumber != doc.Header().FullNumber {
			return shared.NewDomainError(shared.ErrMissingCorrection.Code,
				fmt.Sprintf("Credit note %s does not reference %s", note.FullNumber, doc.Header().FullNumber))
		}
		return doc.Void(req.CorrectingDocumentID, req.Reason)
	})
}

// VerifyIntegrity recomputes the content hash of a submitted document and compares it with the stored one
func (s *DocumentService) VerifyIntegrity(ctx context.Context, tenantID, documentID uuid.UUID) (bool, error) {
	var doc invoicing.Document
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		d, err := repos.DocumentRepo().FindByIDForTenant(ctx, tenantID, documentID)
		doc = d
		return err
	})
	if err != nil {
		return false, err
	}
	ok := doc.VerifyContentHash()
	if !ok && doc.Header().ContentHash != "" {
		s.logger.Error("fiscal document content hash mismatch",
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_id", documentID.String()),
			zap.String("full_number", doc.Header().FullNumber),
		)
	}
	return ok, nil
}

// mutate runs one command on a locked document and saves it with a version check
func (s *DocumentService) mutate(ctx context.Context, tenantID, documentID uuid.UUID, op string, fn func(repos TransactionalRepositories, doc invoicing.Document) error) (*DocumentResponse, error) {
	var (
		doc    invoicing.Document
		events []shared.DomainEvent
		from   invoicing.DocumentStatus
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		d, err := repos.DocumentRepo().FindForUpdate(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		from = d.CurrentStatus()
		if err := fn(repos, d); err != nil {
			return err
		}
		if err := repos.DocumentRepo().SaveWithLock(ctx, d); err != nil {
			return err
		}
		doc = d
		events = d.GetDomainEvents()
		return nil
	})
	if err != nil {
		s.logger.Warn("fiscal document command rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_id", documentID.String()),
			zap.String("operation", op),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}
	doc.ClearDomainEvents()

	h := doc.Header()
	if from != h.Status {
		s.logger.Info("fiscal document transitioned",
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_id", documentID.String()),
			zap.String("full_number", h.FullNumber),
			zap.String("from", string(from)),
			zap.String("to", string(h.Status)),
		)
		s.recordTransition(ctx, doc, from)
	}
	s.publish(ctx, events)

	response := ToDocumentResponse(doc)
	return &response, nil
}

func (s *DocumentService) toLineSpecs(lines []AddLineRequest) ([]invoicing.LineSpec, error) {
	specs := make([]invoicing.LineSpec, 0, len(lines))
	for i, l := range lines {
		spec, err := l.ToLineSpec(s.settings.DefaultTaxRate)
		if err != nil {
			return nil, shared.NewDomainError(shared.CodeOf(err), fmt.Sprintf("Line %d: %s", i+1, err.Error()))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func lineSpecOf(l invoicing.LineItem) invoicing.LineSpec {
	return invoicing.LineSpec{
		ProductID:        l.ProductID,
		ProductCode:      l.ProductCode,
		Description:      l.Description,
		UnitCode:         l.UnitCode,
		Quantity:         l.Quantity,
		UnitPrice:        l.UnitPrice,
		UnitDiscount:     l.UnitDiscount,
		TaxabilityCode:   l.TaxabilityCode,
		TaxRate:          l.TaxRate,
		PriceIncludesTax: l.PriceIncludesTax,
	}
}

func (s *DocumentService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish fiscal document events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

func (s *DocumentService) recordTransition(ctx context.Context, doc invoicing.Document, from invoicing.DocumentStatus) {
	if s.metrics == nil {
		return
	}
	h := doc.Header()
	s.metrics.RecordTransition(ctx, h.TenantID, string(h.DocumentType), string(from), string(h.Status))
}
