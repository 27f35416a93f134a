package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

// PaymentConfig holds what PaymentService needs from the gateway credentials.
// KeySecret doubles as the callback HMAC key.
type PaymentConfig struct {
	Provider  string
	KeyID     string
	KeySecret string
	Currency  currency.Unit
	LockTTL   time.Duration
	LockWait  time.Duration
}

// PaymentSession is what the client needs to open the gateway's checkout UI
type PaymentSession struct {
	GatewaySessionID string `json:"gatewaySessionId"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	PublishableKey   string `json:"publishableKey"`
}

// PaymentCallback is the gateway's client-side confirmation of a payment
type PaymentCallback struct {
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	Signature        string `json:"signature"`
}

// VerifyResult is returned for an accepted callback
type VerifyResult struct {
	Status  string `json:"status"`
	OrderID int64  `json:"orderId"`
}

const verifyStatusSuccess = "success"

// PaymentService creates gateway sessions and finalizes verified payments
type PaymentService struct {
	store          PaymentStore
	gateway        SessionGateway
	locker         Locker
	eventPublisher EventPublisher
	cfg            PaymentConfig
	logger         *zap.Logger
	now            func() time.Time
	pollInterval   time.Duration
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	store PaymentStore,
	gw SessionGateway,
	locker Locker,
	eventPublisher EventPublisher,
	cfg PaymentConfig,
) *PaymentService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 5 * time.Second
	}
	return &PaymentService{
		store:          store,
		gateway:        gw,
		locker:         locker,
		eventPublisher: eventPublisher,
		cfg:            cfg,
		logger:         util.GetLogger(),
		now:            time.Now,
		pollInterval:   100 * time.Millisecond,
	}
}

// CreateSession opens a gateway payment session for a PENDING order. A PENDING
// order that already carries a gateway id gets that session back without a
// remote call; concurrent requests for the same order are serialized on a lock.
func (s *PaymentService) CreateSession(ctx context.Context, principal models.Principal, orderID int64) (*PaymentSession, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateSession")
	defer span.End()

	order, err := s.getOrder(ctx, principal, orderID)
	if err != nil {
		util.SpanError(span, err)
		util.PaymentSessionsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		util.PaymentSessionsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, orderID, order.Status)
	}
	if order.GatewayOrderID.Valid {
		util.PaymentSessionsTotal.WithLabelValues("reused").Inc()
		return s.sessionFor(order), nil
	}

	lockKey := fmt.Sprintf("payment-session:%d", orderID)
	token := uuid.New().String()

	locked, err := s.waitForLock(ctx, lockKey, token, orderID)
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	if !locked {
		// Another request finished creating the session while we waited.
		order, err = s.getOrder(ctx, principal, orderID)
		if err != nil {
			return nil, err
		}
		util.PaymentSessionsTotal.WithLabelValues("reused").Inc()
		return s.sessionFor(order), nil
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("Failed to release payment session lock", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}()

	order, err = s.getOrder(ctx, principal, orderID)
	if err != nil {
		return nil, err
	}
	if order.GatewayOrderID.Valid {
		util.PaymentSessionsTotal.WithLabelValues("reused").Inc()
		return s.sessionFor(order), nil
	}

	req := gateway.SessionRequest{
		Amount:   gateway.MinorUnits(order.TotalAmount, s.cfg.Currency),
		Currency: s.cfg.Currency.String(),
		Receipt:  fmt.Sprintf("order_%d", order.ID),
	}

	start := time.Now()
	session, err := s.gateway.CreateSession(ctx, req)
	util.GatewayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.SpanError(span, err)
		if errors.Is(err, gateway.ErrTimeout) {
			util.PaymentSessionsTotal.WithLabelValues("timeout").Inc()
			s.logger.Warn("Payment gateway timed out", zap.Int64("order_id", orderID))
			return nil, ErrGatewayTimeout
		}
		util.PaymentSessionsTotal.WithLabelValues("gateway_error").Inc()
		s.logger.Error("Payment gateway rejected session", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, err
	}

	stored, err := s.store.SetGatewayOrderID(ctx, order.ID, session.ID)
	if err != nil {
		util.SpanError(span, err)
		util.PaymentSessionsTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to store gateway order id: %w", err)
	}
	if stored.GatewayOrderID.String != session.ID {
		s.logger.Warn("Gateway order id already assigned, discarding new session",
			zap.Int64("order_id", orderID),
			zap.String("kept", stored.GatewayOrderID.String),
			zap.String("discarded", session.ID))
		util.PaymentSessionsTotal.WithLabelValues("reused").Inc()
		return s.sessionFor(stored), nil
	}

	util.PaymentSessionsTotal.WithLabelValues("created").Inc()
	s.logger.Info("Payment session created",
		zap.Int64("order_id", orderID),
		zap.String("gateway_order_id", session.ID),
		zap.Int64("amount", req.Amount))

	event := &models.PaymentSessionCreatedEvent{
		BaseEvent:        broker.NewBaseEvent(models.EventTypePaymentSessionCreated),
		OrderID:          orderID,
		GatewaySessionID: session.ID,
		AmountMinor:      req.Amount,
		Currency:         req.Currency,
	}
	if err := s.eventPublisher.PublishPaymentSessionCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentSessionCreated event", zap.Int64("order_id", orderID), zap.Error(err))
	}

	return &PaymentSession{
		GatewaySessionID: session.ID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		PublishableKey:   s.cfg.KeyID,
	}, nil
}

// waitForLock reports true once the lock is held, or false if another
// request stored a gateway id while we were waiting.
func (s *PaymentService) waitForLock(ctx context.Context, lockKey, token string, orderID int64) (bool, error) {
	deadline := time.Now().Add(s.cfg.LockWait)
	for {
		acquired, err := s.locker.AcquireLock(ctx, lockKey, token, s.cfg.LockTTL)
		if err != nil {
			return false, fmt.Errorf("failed to lock payment session: %w", err)
		}
		if acquired {
			return true, nil
		}
		if time.Now().After(deadline) {
			util.PaymentSessionsTotal.WithLabelValues("busy").Inc()
			return false, fmt.Errorf("order %d: %w", orderID, ErrSessionInProgress)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(s.pollInterval):
		}

		order, err := s.store.GetOrderByID(ctx, orderID)
		if err != nil {
			return false, fmt.Errorf("failed to get order: %w", err)
		}
		if order.GatewayOrderID.Valid {
			return false, nil
		}
	}
}

func (s *PaymentService) sessionFor(order *models.Order) *PaymentSession {
	return &PaymentSession{
		GatewaySessionID: order.GatewayOrderID.String,
		Amount:           gateway.MinorUnits(order.TotalAmount, s.cfg.Currency),
		Currency:         s.cfg.Currency.String(),
		PublishableKey:   s.cfg.KeyID,
	}
}

func (s *PaymentService) getOrder(ctx context.Context, principal models.Principal, orderID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if !principal.IsAdmin() && order.UserID != principal.UserID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Verify checks a gateway callback and marks the matching order PAID. The
// signature is checked before any state is read. Repeating a callback for an
// order that is already paid succeeds without recording a second payment.
func (s *PaymentService) Verify(ctx context.Context, cb PaymentCallback) (*VerifyResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Verify")
	defer span.End()

	if cb.GatewayPaymentID == "" || cb.GatewayOrderID == "" || cb.Signature == "" {
		util.PaymentVerificationsTotal.WithLabelValues("missing_fields").Inc()
		return nil, ErrMissingFields
	}

	if s.cfg.KeySecret == "" {
		util.PaymentVerificationsTotal.WithLabelValues("not_configured").Inc()
		s.logger.Error("Payment callback rejected: gateway secret is not configured",
			zap.String("gateway_order_id", cb.GatewayOrderID))
		util.SpanError(span, ErrSignatureInvalid)
		return nil, ErrSignatureInvalid
	}

	if !VerifySignature(s.cfg.KeySecret, cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature) {
		util.PaymentVerificationsTotal.WithLabelValues("invalid_signature").Inc()
		s.logger.Warn("Payment callback signature mismatch",
			zap.String("gateway_order_id", cb.GatewayOrderID),
			zap.String("gateway_payment_id", cb.GatewayPaymentID))
		util.SpanError(span, ErrSignatureInvalid)
		return nil, ErrSignatureInvalid
	}

	res, err := s.store.ConfirmPayment(ctx, store.PaymentConfirmation{
		Provider:          s.cfg.Provider,
		ProviderPaymentID: cb.GatewayPaymentID,
		ProviderOrderID:   cb.GatewayOrderID,
		PaidAt:            s.now().UTC(),
	})
	if err != nil {
		util.SpanError(span, err)
		switch {
		case errors.Is(err, store.ErrNotFound):
			util.PaymentVerificationsTotal.WithLabelValues("order_not_found").Inc()
			return nil, ErrOrderNotFound
		case errors.Is(err, store.ErrOrderNotPending):
			util.PaymentVerificationsTotal.WithLabelValues("invalid_transition").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		default:
			util.PaymentVerificationsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("Payment verification failed",
				zap.String("gateway_order_id", cb.GatewayOrderID), zap.Error(err))
			return nil, &VerificationFailedError{Cause: err}
		}
	}

	if res.AlreadyPaid {
		util.PaymentVerificationsTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("Payment already verified",
			zap.Int64("order_id", res.Order.ID),
			zap.String("gateway_payment_id", cb.GatewayPaymentID))
		return &VerifyResult{Status: verifyStatusSuccess, OrderID: res.Order.ID}, nil
	}

	util.PaymentVerificationsTotal.WithLabelValues("success").Inc()
	util.OrderStatusTransitionsTotal.WithLabelValues(
		models.OrderStatusPending.String(), models.OrderStatusPaid.String()).Inc()
	s.logger.Info("Payment verified",
		zap.Int64("order_id", res.Order.ID),
		zap.Int64("payment_id", res.Payment.ID),
		zap.String("amount", res.Payment.Amount.StringFixed(2)))

	event := &models.OrderPaidEvent{
		BaseEvent:         broker.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:           res.Order.ID,
		PaymentID:         res.Payment.ID,
		Amount:            res.Payment.Amount,
		Provider:          res.Payment.Provider,
		ProviderPaymentID: res.Payment.ProviderPaymentID,
	}
	if err := s.eventPublisher.PublishOrderPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaid event", zap.Int64("order_id", res.Order.ID), zap.Error(err))
	}

	return &VerifyResult{Status: verifyStatusSuccess, OrderID: res.Order.ID}, nil
}
