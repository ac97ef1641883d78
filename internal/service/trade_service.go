package service

import (
	"context"
	"time"

	"github.com/character-hunt/internal/analytics"
	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/game"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/models"
	"github.com/character-hunt/internal/storage"
)

// TradeService runs two-phase trades and gifts. Proposals are cheap checks
// plus a stored document; every settlement re-validates ownership under both
// users' locks, taken in ascending id order.
type TradeService struct {
	pending     *storage.PendingRepository
	collections *storage.CollectionRepository
	userLocks   *game.MutexMap
	tradeLimit  *TradeLimiter
	giftLimit   *GiftCooldown
	sink        analytics.Sink
	logger      *logging.Logger
}

// NewTradeService creates a new trade service
func NewTradeService(
	pending *storage.PendingRepository,
	collections *storage.CollectionRepository,
	sink analytics.Sink,
	logger *logging.Logger,
) *TradeService {
	return &TradeService{
		pending:     pending,
		collections: collections,
		userLocks:   game.NewMutexMap(),
		tradeLimit:  NewTradeLimiter(models.TradeCooldown),
		giftLimit:   NewGiftCooldown(models.GiftCooldown),
		sink:        sink,
		logger:      logger,
	}
}

// GiftCooldowns exposes the gift cooldown tracker for the sweeper
func (s *TradeService) GiftCooldowns() *GiftCooldown {
	return s.giftLimit
}

// ProposeTrade opens a trade: proposer gives offeredInstance for the
// counterparty's requestedInstance.
func (s *TradeService) ProposeTrade(ctx context.Context, proposer, counterparty int64, offeredInstance, requestedInstance string) (*models.PendingTrade, error) {
	if proposer == counterparty {
		return nil, apperrors.NewInvalidParameterError("counterparty", "cannot trade with yourself")
	}
	if !s.tradeLimit.Allow(proposer) {
		return nil, apperrors.NewCooldownError("trade")
	}

	// Both sides must hold what the proposal names. Checked again at confirm.
	if _, err := s.collections.Get(ctx, proposer, offeredInstance); err != nil {
		return nil, err
	}
	if _, err := s.collections.Get(ctx, counterparty, requestedInstance); err != nil {
		return nil, err
	}

	trade := &models.PendingTrade{
		Proposer:          proposer,
		Counterparty:      counterparty,
		OfferedInstance:   offeredInstance,
		RequestedInstance: requestedInstance,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.pending.PutTrade(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ConfirmTrade settles the trade pending between actor and other. Only the
// counterparty may confirm.
func (s *TradeService) ConfirmTrade(ctx context.Context, actor, other int64) (*models.PendingTrade, error) {
	unlock := s.userLocks.LockPair(actor, other)
	defer unlock()

	trade, err := s.pending.GetTrade(ctx, actor, other)
	if err != nil {
		return nil, err
	}
	if actor != trade.Counterparty {
		return nil, apperrors.NewNotPartyError("trade")
	}

	now := time.Now().UTC()
	if trade.Expired(now) {
		if err := s.pending.DeleteTrade(ctx, actor, other); err != nil {
			s.logger.WithError(err).Warn("failed to purge expired trade")
		}
		return nil, apperrors.NewExpiredError("trade")
	}

	// Re-validate: either party may have lost the instance since proposal
	offered, err := s.collections.Get(ctx, trade.Proposer, trade.OfferedInstance)
	if err != nil {
		return nil, err
	}
	requested, err := s.collections.Get(ctx, trade.Counterparty, trade.RequestedInstance)
	if err != nil {
		return nil, err
	}

	offered.AcquiredVia = models.AcquiredByTrade
	offered.AcquiredAt = now
	requested.AcquiredVia = models.AcquiredByTrade
	requested.AcquiredAt = now

	if err := s.collections.Swap(ctx, trade.Proposer, trade.Counterparty, offered, requested); err != nil {
		return nil, err
	}

	if err := s.pending.DeleteTrade(ctx, actor, other); err != nil {
		s.logger.WithError(err).Warn("failed to delete settled trade")
	}

	s.sink.Record(analytics.Event{
		Type:        analytics.EventTrade,
		UserID:      trade.Proposer,
		PeerID:      trade.Counterparty,
		CharacterID: offered.CharacterID,
	})
	return trade, nil
}

// CancelTrade voids the trade pending between actor and other. Only the
// counterparty may cancel; the proposer just lets it expire.
func (s *TradeService) CancelTrade(ctx context.Context, actor, other int64) error {
	trade, err := s.pending.GetTrade(ctx, actor, other)
	if err != nil {
		return err
	}
	if actor != trade.Counterparty {
		return apperrors.NewNotPartyError("trade")
	}
	return s.pending.DeleteTrade(ctx, actor, other)
}

// ProposeGift opens a gift offer. The confirmation that follows comes from
// the sender again, as an are-you-sure step.
func (s *TradeService) ProposeGift(ctx context.Context, sender, receiver int64, instanceID string) (*models.PendingGift, error) {
	if sender == receiver {
		return nil, apperrors.NewInvalidParameterError("receiver", "cannot gift to yourself")
	}

	now := time.Now().UTC()
	if !s.giftLimit.Allow(sender, now) {
		return nil, apperrors.NewCooldownError("gift")
	}

	if _, err := s.collections.Get(ctx, sender, instanceID); err != nil {
		s.giftLimit.Clear(sender)
		return nil, err
	}

	gift := &models.PendingGift{
		Sender:          sender,
		Receiver:        receiver,
		OfferedInstance: instanceID,
		CreatedAt:       now,
	}
	if err := s.pending.PutGift(ctx, gift); err != nil {
		s.giftLimit.Clear(sender)
		return nil, err
	}
	return gift, nil
}

// ConfirmGift hands the offered character to the receiver. Sender only.
func (s *TradeService) ConfirmGift(ctx context.Context, actor, receiver int64) (*models.PendingGift, error) {
	unlock := s.userLocks.LockPair(actor, receiver)
	defer unlock()

	gift, err := s.pending.GetGift(ctx, actor, receiver)
	if err != nil {
		return nil, err
	}
	if actor != gift.Sender {
		return nil, apperrors.NewNotPartyError("gift")
	}

	now := time.Now().UTC()
	if gift.Expired(now) {
		if err := s.pending.DeleteGift(ctx, actor, receiver); err != nil {
			s.logger.WithError(err).Warn("failed to purge expired gift")
		}
		s.giftLimit.Clear(actor)
		return nil, apperrors.NewExpiredError("gift")
	}

	entry, err := s.collections.Get(ctx, gift.Sender, gift.OfferedInstance)
	if err != nil {
		return nil, err
	}
	entry.AcquiredVia = models.AcquiredByGift
	entry.AcquiredAt = now

	if err := s.collections.Move(ctx, gift.Sender, gift.Receiver, entry); err != nil {
		return nil, err
	}

	if err := s.pending.DeleteGift(ctx, actor, receiver); err != nil {
		s.logger.WithError(err).Warn("failed to delete settled gift")
	}

	s.sink.Record(analytics.Event{
		Type:        analytics.EventGift,
		UserID:      gift.Sender,
		PeerID:      gift.Receiver,
		CharacterID: entry.CharacterID,
	})
	return gift, nil
}

// CancelGift withdraws a pending gift and refunds the sender's cooldown.
// Sender only.
func (s *TradeService) CancelGift(ctx context.Context, actor, receiver int64) error {
	gift, err := s.pending.GetGift(ctx, actor, receiver)
	if err != nil {
		return err
	}
	if actor != gift.Sender {
		return apperrors.NewNotPartyError("gift")
	}

	if err := s.pending.DeleteGift(ctx, actor, receiver); err != nil {
		return err
	}
	s.giftLimit.Clear(actor)
	return nil
}
