// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/repository"
	"studio-credit-ledger/internal/infra/logging"
	"studio-credit-ledger/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

type LedgerUseCase interface {
	// GrantTrialCredits credits the fixed trial amount once per user; repeat
	// calls return the unchanged balance.
	GrantTrialCredits(ctx context.Context, userID string) (int64, error)
	// DeductCredits removes amount (> 0) from the balance. Every deduction is
	// a distinct event; concurrent legitimate deductions all apply.
	DeductCredits(ctx context.Context, userID string, amount int64, entryType model.EntryType, metadata map[string]interface{}) (int64, error)
	// AddCredits adds amount (> 0) under a caller-supplied source key; a
	// replay with the same key returns the balance from the first application.
	AddCredits(ctx context.Context, userID string, amount int64, sourceKey string, metadata map[string]interface{}) (int64, error)
	// HasSufficientCredits is advisory; the authoritative guard runs inside
	// the store transaction on deduction.
	HasSufficientCredits(ctx context.Context, userID string, required int64) (bool, error)
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, error)
}

type ledgerUC struct {
	ledger      repository.LedgerRepository
	trialAmount int64
	opTimeout   time.Duration
	log         *zerolog.Logger
}

func NewLedgerUseCase(ledger repository.LedgerRepository, trialAmount int64, opTimeout time.Duration, logger *zerolog.Logger) *ledgerUC {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &ledgerUC{ledger: ledger, trialAmount: trialAmount, opTimeout: opTimeout, log: logger}
}

// TrialSourceKey is deterministic per user so concurrent grants collapse.
func TrialSourceKey(userID string) string { return "trial_" + userID }

func (u *ledgerUC) GrantTrialCredits(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrInvalidArgument
	}
	return u.apply(ctx, &model.LedgerEntry{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Amount:    u.trialAmount,
		Type:      model.EntryTypeTrialGrant,
		SourceKey: TrialSourceKey(userID),
		CreatedAt: time.Now(),
	})
}

func (u *ledgerUC) DeductCredits(ctx context.Context, userID string, amount int64, entryType model.EntryType, metadata map[string]interface{}) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	switch entryType {
	case model.EntryTypeGenerationConsume, model.EntryTypeConceptConsume:
	default:
		return 0, domain.ErrInvalidArgument
	}
	return u.apply(ctx, &model.LedgerEntry{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Amount:    -amount,
		Type:      entryType,
		SourceKey: "deduct_" + uuid.NewString(),
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
}

func (u *ledgerUC) AddCredits(ctx context.Context, userID string, amount int64, sourceKey string, metadata map[string]interface{}) (int64, error) {
	if userID == "" || amount <= 0 || sourceKey == "" {
		return 0, domain.ErrInvalidArgument
	}
	return u.apply(ctx, &model.LedgerEntry{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Amount:    amount,
		Type:      model.EntryTypePurchase,
		SourceKey: sourceKey,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
}

func (u *ledgerUC) apply(ctx context.Context, entry *model.LedgerEntry) (int64, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.Apply")()
	ctx, cancel := context.WithTimeout(ctx, u.opTimeout)
	defer cancel()

	balance, applied, err := u.ledger.AppendAndApply(ctx, repository.NoTX, entry)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrUnavailable
		}
		result := "error"
		if errors.Is(err, domain.ErrInsufficientCredits) {
			result = "insufficient"
			metrics.IncInsufficientFunds()
		}
		metrics.IncLedgerOp(string(entry.Type), result)
		return 0, err
	}

	if !applied {
		metrics.IncLedgerOp(string(entry.Type), "replay")
		u.log.Debug().Str("source_key", entry.SourceKey).Str("user_id", entry.UserID).Msg("idempotent ledger replay")
		return balance, nil
	}

	metrics.IncLedgerOp(string(entry.Type), "applied")
	metrics.AddCreditsMoved(entry.Amount)
	u.log.Info().
		Str("user_id", entry.UserID).
		Str("type", string(entry.Type)).
		Int64("amount", entry.Amount).
		Int64("balance_after", balance).
		Str("source_key", entry.SourceKey).
		Msg("ledger entry applied")
	return balance, nil
}

func (u *ledgerUC) HasSufficientCredits(ctx context.Context, userID string, required int64) (bool, error) {
	if required < 0 {
		return false, domain.ErrInvalidArgument
	}
	balance, err := u.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= required, nil
}

func (u *ledgerUC) Balance(ctx context.Context, userID string) (int64, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.Balance")()
	if userID == "" {
		return 0, domain.ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, u.opTimeout)
	defer cancel()
	balance, err := u.ledger.GetBalance(ctx, repository.NoTX, userID)
	if errors.Is(err, context.DeadlineExceeded) {
		return 0, domain.ErrUnavailable
	}
	return balance, err
}

func (u *ledgerUC) History(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, u.opTimeout)
	defer cancel()
	return u.ledger.ListByUser(ctx, repository.NoTX, userID, offset, limit)
}
