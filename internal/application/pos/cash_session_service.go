package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felicita/backend/internal/application/validation"
	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SessionMetrics records shift reconciliation outcomes
type SessionMetrics interface {
	RecordSessionClosed(ctx context.Context, tenantID uuid.UUID, level string, variance decimal.Decimal)
}

// CashSessionService handles point-of-sale shift operations
type CashSessionService struct {
	sessionRepo    pos.CashSessionRepository
	methodRepo     pos.PaymentMethodRepository
	thresholds     pos.VarianceThresholds
	eventPublisher shared.EventPublisher
	metrics        SessionMetrics
	logger         *zap.Logger
}

// NewCashSessionService creates a new CashSessionService
func NewCashSessionService(sessionRepo pos.CashSessionRepository, methodRepo pos.PaymentMethodRepository, thresholds pos.VarianceThresholds, logger *zap.Logger) *CashSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if thresholds.Warning.IsZero() && thresholds.Critical.IsZero() {
		thresholds = pos.DefaultVarianceThresholds()
	}
	return &CashSessionService{
		sessionRepo: sessionRepo,
		methodRepo:  methodRepo,
		thresholds:  thresholds,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *CashSessionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *CashSessionService) SetMetrics(metrics SessionMetrics) {
	s.metrics = metrics
}

// Open opens a shift; a terminal holds at most one unclosed session
func (s *CashSessionService) Open(ctx context.Context, tenantID uuid.UUID, req OpenSessionRequest) (*SessionResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.sessionRepo.FindOpenByTerminal(ctx, tenantID, req.TerminalID)
	if err == nil {
		return nil, shared.NewDomainError("SESSION_ALREADY_OPEN",
			fmt.Sprintf("Terminal already has session %s in %s status", existing.SessionNumber, existing.Status))
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	session, err := pos.OpenCashSession(tenantID, req.TerminalID, req.SessionNumber, req.CashierID, req.OpeningFloat, req.Notes)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("cash session opened",
		zap.String("tenant_id", tenantID.String()),
		zap.String("session_id", session.ID.String()),
		zap.String("terminal_id", req.TerminalID.String()),
		zap.String("opening_float", session.OpeningFloat.StringFixed(2)),
	)
	s.publish(ctx, session.GetDomainEvents())
	session.ClearDomainEvents()

	response := ToSessionResponse(session)
	return &response, nil
}

// GetByID retrieves a session by ID
func (s *CashSessionService) GetByID(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessionRepo.FindByIDForTenant(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	response := ToSessionResponse(session)
	return &response, nil
}

// List retrieves sessions with filtering and pagination
func (s *CashSessionService) List(ctx context.Context, tenantID uuid.UUID, filter SessionListFilter) ([]SessionResponse, error) {
	if err := validation.Struct(filter); err != nil {
		return nil, err
	}
	domainFilter := shared.DefaultFilter()
	domainFilter.OrderBy = "opened_at"
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.TerminalID != nil {
		domainFilter.Filters["terminal_id"] = *filter.TerminalID
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}

	sessions, err := s.sessionRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	responses := make([]SessionResponse, len(sessions))
	for i := range sessions {
		responses[i] = ToSessionResponse(&sessions[i])
	}
	return responses, nil
}

// RecordSalePayment records every tender of a sale atomically
func (s *CashSessionService) RecordSalePayment(ctx context.Context, tenantID, sessionID uuid.UUID, req RecordSalePaymentRequest) ([]PaymentResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	methods := make(map[string]*pos.PaymentMethod)
	inputs := make([]pos.PaymentInput, len(req.Payments))
	for i, p := range req.Payments {
		code := strings.ToUpper(strings.TrimSpace(p.MethodCode))
		method, ok := methods[code]
		if !ok {
			m, err := s.methodRepo.FindByCode(ctx, tenantID, code)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return nil, shared.NewDomainError(shared.ErrInvalidPayment.Code, fmt.Sprintf("Unknown payment method: %s", code))
				}
				return nil, err
			}
			methods[code] = m
			method = m
		}
		inputs[i] = pos.PaymentInput{
			Method:     *method,
			Amount:     p.Amount,
			Received:   p.Received,
			Reference:  p.Reference,
			CardLast4:  p.CardLast4,
			CardHolder: p.CardHolder,
		}
	}

	var (
		recorded []pos.Payment
		events   []shared.DomainEvent
	)
	_, err := s.sessionRepo.Update(ctx, tenantID, sessionID, func(session *pos.CashSession) error {
		payments, err := session.RecordSalePayment(req.SaleID, inputs...)
		if err != nil {
			return err
		}
		recorded = payments
		events = session.GetDomainEvents()
		session.ClearDomainEvents()
		return nil
	})
	if err != nil {
		s.logger.Warn("sale payment rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("session_id", sessionID.String()),
			zap.String("sale_id", req.SaleID.String()),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}
	s.publish(ctx, events)

	responses := make([]PaymentResponse, len(recorded))
	for i, p := range recorded {
		responses[i] = ToPaymentResponse(p)
	}
	return responses, nil
}

// Suspend pauses a shift
func (s *CashSessionService) Suspend(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionResponse, error) {
	return s.transition(ctx, tenantID, sessionID, "suspended", (*pos.CashSession).Suspend)
}

// Resume reopens a suspended shift
func (s *CashSessionService) Resume(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionResponse, error) {
	return s.transition(ctx, tenantID, sessionID, "resumed", (*pos.CashSession).Resume)
}

// Close reconciles a shift against the counted cash. The session is moved to
// CLOSING in its own commit first, so any payment racing the close is rejected
// before the final figures are taken. A second Close on a session already in
// CLOSING fails with SESSION_ALREADY_CLOSING; use FinishClose to complete it.
func (s *CashSessionService) Close(ctx context.Context, tenantID, sessionID uuid.UUID, req CloseSessionRequest) (*pos.CloseSummary, error) {
	if err := validateClose(req); err != nil {
		return nil, err
	}

	_, err := s.sessionRepo.Update(ctx, tenantID, sessionID, func(session *pos.CashSession) error {
		return session.BeginClose()
	})
	if err != nil {
		s.logger.Warn("cash session close rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("session_id", sessionID.String()),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}
	return s.finish(ctx, tenantID, sessionID, req)
}

// FinishClose completes a session left in CLOSING, for instance after the
// process died between the two commits of Close. Sessions in any other state
// are rejected.
func (s *CashSessionService) FinishClose(ctx context.Context, tenantID, sessionID uuid.UUID, req CloseSessionRequest) (*pos.CloseSummary, error) {
	if err := validateClose(req); err != nil {
		return nil, err
	}
	return s.finish(ctx, tenantID, sessionID, req)
}

func validateClose(req CloseSessionRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	return pos.ValidateActualCash(req.ActualCash)
}

func (s *CashSessionService) finish(ctx context.Context, tenantID, sessionID uuid.UUID, req CloseSessionRequest) (*pos.CloseSummary, error) {
	var events []shared.DomainEvent
	session, err := s.sessionRepo.Update(ctx, tenantID, sessionID, func(session *pos.CashSession) error {
		if err := session.FinishClose(req.ActualCash, req.Notes); err != nil {
			return err
		}
		events = session.GetDomainEvents()
		session.ClearDomainEvents()
		return nil
	})
	if err != nil {
		s.logger.Error("cash session close not finished",
			zap.String("tenant_id", tenantID.String()),
			zap.String("session_id", sessionID.String()),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}

	summary := session.Summary(s.thresholds)
	fields := []zap.Field{
		zap.String("tenant_id", tenantID.String()),
		zap.String("session_id", sessionID.String()),
		zap.String("expected_cash", session.ExpectedCash.StringFixed(2)),
		zap.String("actual_cash", req.ActualCash.StringFixed(2)),
		zap.String("variance", session.Variance.StringFixed(2)),
		zap.String("variance_level", string(summary.VarianceLevel)),
	}
	if summary.VarianceLevel == pos.VarianceCritical {
		s.logger.Warn("cash session closed with critical variance", fields...)
	} else {
		s.logger.Info("cash session closed", fields...)
	}
	if s.metrics != nil {
		s.metrics.RecordSessionClosed(ctx, tenantID, string(summary.VarianceLevel), *session.Variance)
	}
	s.publish(ctx, events)
	return &summary, nil
}

// Summary returns the reconciliation report of a session in any state
func (s *CashSessionService) Summary(ctx context.Context, tenantID, sessionID uuid.UUID) (*pos.CloseSummary, error) {
	session, err := s.sessionRepo.FindByIDForTenant(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	summary := session.Summary(s.thresholds)
	return &summary, nil
}

// SavePaymentMethod creates or updates a payment method of a tenant
func (s *CashSessionService) SavePaymentMethod(ctx context.Context, tenantID uuid.UUID, req PaymentMethodRequest) (*PaymentMethodResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	method, err := pos.NewPaymentMethod(req.Code, req.Name, pos.PaymentKind(req.Kind))
	if err != nil {
		return nil, err
	}
	if req.RequiresReference != nil {
		method.RequiresReference = *req.RequiresReference
	}
	if req.CommissionPercent != nil || req.CommissionFixed != nil {
		pct, fixed := decimal.Zero, decimal.Zero
		if req.CommissionPercent != nil {
			pct = *req.CommissionPercent
		}
		if req.CommissionFixed != nil {
			fixed = *req.CommissionFixed
		}
		if err := method.SetCommission(pct, fixed); err != nil {
			return nil, err
		}
	}
	if req.Active != nil {
		method.Active = *req.Active
	}
	if err := s.methodRepo.Save(ctx, tenantID, method); err != nil {
		return nil, err
	}
	response := ToPaymentMethodResponse(*method)
	return &response, nil
}

// ListPaymentMethods lists the payment methods of a tenant
func (s *CashSessionService) ListPaymentMethods(ctx context.Context, tenantID uuid.UUID) ([]PaymentMethodResponse, error) {
	methods, err := s.methodRepo.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	responses := make([]PaymentMethodResponse, len(methods))
	for i, m := range methods {
		responses[i] = ToPaymentMethodResponse(m)
	}
	return responses, nil
}

func (s *CashSessionService) transition(ctx context.Context, tenantID, sessionID uuid.UUID, what string, fn pos.SessionMutator) (*SessionResponse, error) {
	var (
		events []shared.DomainEvent
		from   pos.SessionStatus
	)
	session, err := s.sessionRepo.Update(ctx, tenantID, sessionID, func(session *pos.CashSession) error {
		from = session.Status
		if err := fn(session); err != nil {
			return err
		}
		events = session.GetDomainEvents()
		session.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cash session "+what,
		zap.String("tenant_id", tenantID.String()),
		zap.String("session_id", sessionID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(session.Status)),
	)
	s.publish(ctx, events)

	response := ToSessionResponse(session)
	return &response, nil
}

func (s *CashSessionService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish cash session events", zap.Error(err))
	}
}
