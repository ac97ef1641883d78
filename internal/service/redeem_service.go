package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/character-hunt/internal/analytics"
	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/models"
	"github.com/character-hunt/internal/storage"
	"github.com/google/uuid"
)

// Code alphabet drops glyphs users misread when typing codes by hand
// (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codeLength         = 8
	maxCodeGenAttempts = 5
)

// RedeemResult is the outcome of a successful redemption.
type RedeemResult struct {
	Code           *models.RedeemCode
	Entry          *models.CollectionEntry
	NewBalance     int64
	DuplicateOwned bool
}

// RedeemService issues and settles redeem codes.
type RedeemService struct {
	codes       *storage.CodeRepository
	characters  *storage.CharacterRepository
	collections *storage.CollectionRepository
	balances    *storage.BalanceRepository
	sink        analytics.Sink
	logger      *logging.Logger
}

// NewRedeemService creates a new redeem service
func NewRedeemService(
	codes *storage.CodeRepository,
	characters *storage.CharacterRepository,
	collections *storage.CollectionRepository,
	balances *storage.BalanceRepository,
	sink analytics.Sink,
	logger *logging.Logger,
) *RedeemService {
	return &RedeemService{
		codes:       codes,
		characters:  characters,
		collections: collections,
		balances:    balances,
		sink:        sink,
		logger:      logger,
	}
}

// CreateCurrencyCode issues a code granting a currency amount
func (s *RedeemService) CreateCurrencyCode(ctx context.Context, creator int64, amount int64, maxUses int) (*models.RedeemCode, error) {
	if amount <= 0 {
		return nil, apperrors.NewInvalidParameterError("amount", "must be positive")
	}
	return s.create(ctx, &models.RedeemCode{
		Kind:      models.CodeKindCurrency,
		Amount:    amount,
		MaxUses:   maxUses,
		Active:    true,
		CreatedBy: creator,
		CreatedAt: time.Now().UTC(),
	})
}

// CreateCharacterCode issues a code granting a copy of a catalog character.
// The character is resolved at redemption time, not now, so catalog edits
// between issue and redeem are honored.
func (s *RedeemService) CreateCharacterCode(ctx context.Context, creator int64, characterID string, maxUses int) (*models.RedeemCode, error) {
	// Fail early on typos; existence is re-checked on redeem
	if _, err := s.characters.Get(ctx, characterID); err != nil {
		return nil, err
	}
	return s.create(ctx, &models.RedeemCode{
		Kind:        models.CodeKindCharacter,
		CharacterID: characterID,
		MaxUses:     maxUses,
		Active:      true,
		CreatedBy:   creator,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *RedeemService) create(ctx context.Context, code *models.RedeemCode) (*models.RedeemCode, error) {
	if code.MaxUses < 0 {
		return nil, apperrors.NewInvalidParameterError("max_uses", "must not be negative")
	}

	var lastErr error
	for attempt := 0; attempt < maxCodeGenAttempts; attempt++ {
		generated, err := randomCode(codeLength)
		if err != nil {
			return nil, apperrors.NewStorageError("generate code", err)
		}
		code.Code = generated

		if err := s.codes.Create(ctx, code); err != nil {
			lastErr = err
			// Collision: try a fresh code
			if apperrors.IsCategory(err, apperrors.CategoryUserInput) {
				continue
			}
			return nil, err
		}
		return code, nil
	}
	return nil, apperrors.NewStorageError("generate code", lastErr)
}

// Redeem settles a code for a user. The storage layer arbitrates per-user
// and total use limits; this layer only hands out the reward.
func (s *RedeemService) Redeem(ctx context.Context, userID int64, codeName string) (*RedeemResult, error) {
	code, err := s.codes.Redeem(ctx, codeName, userID)
	if err != nil {
		return nil, err
	}

	result := &RedeemResult{Code: code}
	now := time.Now().UTC()

	switch code.Kind {
	case models.CodeKindCurrency:
		balance, err := s.balances.Change(ctx, userID, code.Amount)
		if err != nil {
			// The use is burned but the reward failed; log loudly
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"user_id": userID,
				"code":    codeName,
			}).Error("redeem reward credit failed")
			return nil, err
		}
		result.NewBalance = balance

	case models.CodeKindCharacter:
		character, err := s.characters.Get(ctx, code.CharacterID)
		if err != nil {
			return nil, err
		}

		result.DuplicateOwned, err = s.ownsCharacter(ctx, userID, character.ID)
		if err != nil {
			s.logger.WithError(err).Warn("duplicate ownership check failed")
		}

		entry := models.NewCollectionEntry(uuid.New().String(), character, models.AcquiredByRedeem, now)
		if err := s.collections.Add(ctx, userID, entry); err != nil {
			return nil, err
		}
		result.Entry = entry

	default:
		return nil, apperrors.NewInvalidParameterError("kind", "unknown code kind")
	}

	s.sink.Record(analytics.Event{
		Type:        analytics.EventRedeem,
		UserID:      userID,
		CharacterID: code.CharacterID,
		Amount:      code.Amount,
	})
	return result, nil
}

// Deactivate turns a code off
func (s *RedeemService) Deactivate(ctx context.Context, code string) error {
	return s.codes.Deactivate(ctx, code)
}

func (s *RedeemService) ownsCharacter(ctx context.Context, userID int64, characterID string) (bool, error) {
	entries, err := s.collections.List(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.CharacterID == characterID {
			return true, nil
		}
	}
	return false, nil
}

func randomCode(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}
