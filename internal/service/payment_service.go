package service

import (
	"context"
	"time"

	"github.com/character-hunt/internal/analytics"
	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/models"
	"github.com/character-hunt/internal/storage"
	"github.com/google/uuid"
)

// PaymentService runs two-phase currency transfers. A proposal reserves
// nothing: the balance is checked for feedback at propose time and enforced
// atomically at confirm time. The single-use token makes double confirmation
// impossible even when two confirms race.
type PaymentService struct {
	pending  *storage.PendingRepository
	balances *storage.BalanceRepository
	sink     analytics.Sink
	logger   *logging.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	pending *storage.PendingRepository,
	balances *storage.BalanceRepository,
	sink analytics.Sink,
	logger *logging.Logger,
) *PaymentService {
	return &PaymentService{
		pending:  pending,
		balances: balances,
		sink:     sink,
		logger:   logger,
	}
}

// Propose opens a payment from sender to receiver and returns the pending
// record carrying its confirmation token.
func (s *PaymentService) Propose(ctx context.Context, sender, receiver int64, amount int64) (*models.PendingPayment, error) {
	if amount <= 0 {
		return nil, apperrors.NewInvalidParameterError("amount", "must be positive")
	}
	if sender == receiver {
		return nil, apperrors.NewInvalidParameterError("recipient", "cannot pay yourself")
	}

	// Early feedback only; the authoritative check happens at confirm
	balance, err := s.balances.Get(ctx, sender)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, apperrors.NewInsufficientBalanceError(amount)
	}

	payment := &models.PendingPayment{
		Token:     uuid.New().String(),
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.pending.PutPayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// Confirm settles the payment behind a token. Only the sender may confirm,
// and only the first confirmation of a token does anything.
func (s *PaymentService) Confirm(ctx context.Context, actor int64, token string) (*models.PendingPayment, error) {
	payment, err := s.pending.GetPayment(ctx, token)
	if err != nil {
		return nil, err
	}
	if actor != payment.Sender {
		return nil, apperrors.NewNotPartyError("payment")
	}
	if payment.Expired(time.Now().UTC()) {
		return nil, apperrors.NewExpiredError("payment")
	}

	// Claiming the token is the arbitration point for racing confirms
	claimed, err := s.pending.ClaimPayment(ctx, token)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperrors.NewExpiredError("payment")
	}

	if err := s.balances.Transfer(ctx, payment.Sender, payment.Receiver, payment.Amount); err != nil {
		return nil, err
	}

	s.sink.Record(analytics.Event{
		Type:   analytics.EventPayment,
		UserID: payment.Sender,
		PeerID: payment.Receiver,
		Amount: payment.Amount,
	})
	return payment, nil
}

// Cancel voids a pending payment. Sender only.
func (s *PaymentService) Cancel(ctx context.Context, actor int64, token string) error {
	payment, err := s.pending.GetPayment(ctx, token)
	if err != nil {
		return err
	}
	if actor != payment.Sender {
		return apperrors.NewNotPartyError("payment")
	}

	if _, err := s.pending.ClaimPayment(ctx, token); err != nil {
		return err
	}
	return nil
}
