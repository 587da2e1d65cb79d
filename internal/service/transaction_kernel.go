package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"
	"banking-services/pkg/apperror"
	"banking-services/pkg/logger"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TransactionKernelImpl implements ports.TransactionKernel.
//
// Each request runs START -> LOOKUP -> VALIDATE -> APPLY and stops at the
// first terminal state. Per-account serialization is left to the store.
type TransactionKernelImpl struct {
	gate           ports.IdentityGate
	store          ports.LedgerStore
	publisher      ports.EventPublisher
	publishTimeout time.Duration
	inflight       sync.WaitGroup
	tracer         trace.Tracer
	log            zerolog.Logger
}

const defaultPublishTimeout = 5 * time.Second

// KernelOption configures a TransactionKernelImpl.
type KernelOption func(*TransactionKernelImpl)

// WithPublishTimeout bounds each background event publish. Non-positive
// values keep the default.
func WithPublishTimeout(d time.Duration) KernelOption {
	return func(k *TransactionKernelImpl) {
		if d > 0 {
			k.publishTimeout = d
		}
	}
}

// NewTransactionKernel creates a kernel. publisher may be nil.
func NewTransactionKernel(
	gate ports.IdentityGate,
	store ports.LedgerStore,
	publisher ports.EventPublisher,
	log zerolog.Logger,
	opts ...KernelOption,
) *TransactionKernelImpl {
	k := &TransactionKernelImpl{
		gate:           gate,
		store:          store,
		publisher:      publisher,
		publishTimeout: defaultPublishTimeout,
		tracer:         otel.Tracer("banking-services/kernel"),
		log:            log.With().Str("component", "transaction_kernel").Logger(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Shutdown waits for in-flight event publishes, or until ctx is done.
func (k *TransactionKernelImpl) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		k.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process runs one request to its terminal state. The returned result is
// never nil; on any state other than COMMITTED the error is an *apperror.AppError.
func (k *TransactionKernelImpl) Process(ctx context.Context, req ports.TransactionRequest) (*ports.TransactionResult, error) {
	ctx, span := k.tracer.Start(ctx, "kernel.Process",
		trace.WithAttributes(
			attribute.String("customer.id", req.CustomerID),
			attribute.String("transaction.kind", req.Kind),
		),
	)
	defer span.End()

	result, err := k.process(ctx, req)

	span.SetAttributes(attribute.String("outcome.state", string(result.State)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(result.State))
	}
	k.logOutcome(ctx, req, result, err)

	return result, err
}

func (k *TransactionKernelImpl) process(ctx context.Context, req ports.TransactionRequest) (*ports.TransactionResult, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return outcome(domain.StateRejectedInput, nil), apperror.ErrInvalidInput("customer_id is required")
	}

	// START
	authOutcome, err := k.gate.Authenticate(ctx, req.CustomerID)
	switch {
	case errors.Is(err, domain.ErrIdentityUnreachable):
		return outcome(domain.StateAuthFailed, nil), apperror.ErrAuthUnreachable(err)
	case err != nil:
		return outcome(domain.StateAuthFailed, nil), apperror.ErrAuthMalformed(err)
	case authOutcome != domain.AuthOutcomeAuthenticated:
		return outcome(domain.StateAuthFailed, nil), apperror.ErrAuthRejected()
	}

	// LOOKUP
	account, err := k.store.FindAccountByCustomer(ctx, req.CustomerID)
	if err != nil {
		return outcome(domain.StateStorageError, nil), apperror.InternalError(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return outcome(domain.StateAccountNotFound, nil), apperror.ErrAccountNotFound()
	}

	// VALIDATE
	kind, err := domain.ParseTransactionKind(req.Kind)
	if err != nil {
		return outcome(domain.StateRejectedInput, account), apperror.ErrInvalidInput(err.Error())
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return outcome(domain.StateRejectedInput, account), apperror.ErrInvalidInput(err.Error())
	}
	if !account.IsActive() {
		return outcome(domain.StateAccountInactive, account), apperror.ErrAccountInactive()
	}
	if _, err := account.BalanceAfter(kind, req.Amount); err != nil {
		if errors.Is(err, domain.ErrBalanceLimit) {
			return outcome(domain.StateRejectedInput, account), apperror.ErrInvalidInput(err.Error())
		}
		return outcome(domain.StateInsufficientFunds, account), apperror.ErrInsufficientFunds()
	}

	// APPLY
	updated, txn, err := k.store.ApplyMutation(ctx, account.ID, kind, req.Amount)
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return outcome(domain.StateInsufficientFunds, account), apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrAccountNotFound):
		return outcome(domain.StateAccountNotFound, nil), apperror.ErrAccountNotFound()
	case errors.Is(err, domain.ErrAccountInactive):
		return outcome(domain.StateAccountInactive, account), apperror.ErrAccountInactive()
	case errors.Is(err, domain.ErrBalanceLimit):
		return outcome(domain.StateRejectedInput, account), apperror.ErrInvalidInput(err.Error())
	case err != nil:
		return outcome(domain.StateStorageError, account), apperror.ErrStorageFailure(err)
	}

	k.publish(ctx, updated, txn)

	return &ports.TransactionResult{
		State:       domain.StateCommitted,
		Account:     updated,
		Transaction: txn,
	}, nil
}

// publish sends the committed event in the background. The reply never waits
// on the broker and a client disconnect does not cancel the send.
func (k *TransactionKernelImpl) publish(ctx context.Context, account *domain.Account, txn *domain.Transaction) {
	if k.publisher == nil {
		return
	}
	event := domain.NewTransactionCommittedEvent(account, txn)
	ctx = context.WithoutCancel(ctx)

	k.inflight.Add(1)
	go func() {
		defer k.inflight.Done()

		pubCtx, cancel := context.WithTimeout(ctx, k.publishTimeout)
		defer cancel()

		if err := k.publisher.PublishTransactionCommitted(pubCtx, event); err != nil {
			log := logger.WithContext(ctx, k.log)
			log.Warn().Err(err).
				Str("transaction_id", txn.ID.String()).
				Msg("failed to publish transaction event")
		}
	}()
}

func (k *TransactionKernelImpl) logOutcome(ctx context.Context, req ports.TransactionRequest, result *ports.TransactionResult, err error) {
	log := logger.WithContext(ctx, k.log)

	var event *zerolog.Event
	switch result.State {
	case domain.StateCommitted:
		event = log.Info()
	case domain.StateStorageError:
		event = log.Error().Err(err)
	default:
		event = log.Warn().Err(err)
	}

	event = event.
		Str("state", string(result.State)).
		Str("customer_id", req.CustomerID).
		Str("kind", req.Kind).
		Str("amount", domain.AmountString(req.Amount))
	if result.Account != nil {
		event = event.Str("account_id", result.Account.ID.String())
	}
	if result.Transaction != nil {
		event = event.Str("transaction_id", result.Transaction.ID.String())
	}
	event.Msg("transaction processed")
}

func outcome(state domain.TerminalState, account *domain.Account) *ports.TransactionResult {
	return &ports.TransactionResult{State: state, Account: account}
}

var _ ports.TransactionKernel = (*TransactionKernelImpl)(nil)
