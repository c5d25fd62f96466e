package ledger

import (
	"context"
	"log/slog"
	"time"

	"refledger/entity"
	"refledger/lib/sl"
)

// Database defines the atomic balance primitives the ledger depends on.
// Implemented by internal/database.MongoDB. Every conditional carries
// its precondition in the store filter, never in application code.
type Database interface {
	AccountByIdentity(ctx context.Context, identityId int64) (*entity.Account, error)
	IncrementPoints(ctx context.Context, identityId, delta int64) (bool, error)
	DecrementPointsIf(ctx context.Context, identityId, amount int64) (bool, error)
	ZeroPointsIf(ctx context.Context, identityId, observed int64) (bool, error)
	InsertTransaction(ctx context.Context, tx *entity.PointTransaction) error
	TransactionsByAccount(ctx context.Context, identityId int64) ([]*entity.PointTransaction, error)
}

type Config struct {
	Retries int // conditional-update retry budget for debit and zero-out
}

// Service is the append-only point ledger: every successful balance
// mutation writes exactly one immutable transaction.
type Service struct {
	db   Database
	conf Config
	log  *slog.Logger
}

func New(db Database, conf Config, log *slog.Logger) *Service {
	if conf.Retries == 0 {
		conf.Retries = 3
	}
	return &Service{
		db:   db,
		conf: conf,
		log:  log.With(sl.Module("ledger")),
	}
}

// Credit adds amount to the balance. A single $inc makes it safe under
// arbitrary concurrency.
func (s *Service) Credit(ctx context.Context, accountId, amount int64, reason string, refAccountId int64) (*entity.PointTransaction, error) {
	if amount <= 0 {
		return nil, entity.E(entity.KindValidation, "credit amount must be positive")
	}
	matched, err := s.db.IncrementPoints(ctx, accountId, amount)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, entity.Ef(entity.KindNotFound, "account %d not found", accountId)
	}
	return s.record(ctx, &entity.PointTransaction{
		AccountId:    accountId,
		Amount:       amount,
		Kind:         entity.TxCredit,
		Reason:       reason,
		RefAccountId: refAccountId,
	})
}

// Debit subtracts amount without ever letting the balance go negative.
// The decrement only matches when the current balance covers the amount;
// on a miss the balance is re-read to tell a genuinely insufficient
// balance from a concurrent writer, which is retried.
func (s *Service) Debit(ctx context.Context, accountId, amount int64, reason string) (*entity.PointTransaction, error) {
	if amount <= 0 {
		return nil, entity.E(entity.KindValidation, "debit amount must be positive")
	}
	for attempt := 0; attempt < s.conf.Retries; attempt++ {
		matched, err := s.db.DecrementPointsIf(ctx, accountId, amount)
		if err != nil {
			return nil, err
		}
		if matched {
			return s.record(ctx, &entity.PointTransaction{
				AccountId: accountId,
				Amount:    -amount,
				Kind:      entity.TxDebit,
				Reason:    reason,
			})
		}
		acc, err := s.db.AccountByIdentity(ctx, accountId)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			return nil, entity.Ef(entity.KindNotFound, "account %d not found", accountId)
		}
		if acc.Points < amount {
			return nil, entity.Ef(entity.KindInsufficientBalance,
				"balance %d does not cover debit of %d", acc.Points, amount)
		}
		// Balance was sufficient on re-read: a concurrent writer moved
		// it between the two round-trips. Try the conditional again.
	}
	return nil, entity.Ef(entity.KindConflict, "debit of %d lost %d conditional updates", amount, s.conf.Retries)
}

// ZeroOutResult reports what a zero-out did. Amount is the balance that
// was cleared; a zero balance is a reported no-op, not an error.
type ZeroOutResult struct {
	Amount int64
	Noop   bool
	Tx     *entity.PointTransaction
}

// ZeroOut clears the balance in one conditional update keyed on the
// observed balance, recording a transaction for its negation.
func (s *Service) ZeroOut(ctx context.Context, accountId int64, reason string) (*ZeroOutResult, error) {
	for attempt := 0; attempt < s.conf.Retries; attempt++ {
		acc, err := s.db.AccountByIdentity(ctx, accountId)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			return nil, entity.Ef(entity.KindNotFound, "account %d not found", accountId)
		}
		if acc.Points == 0 {
			return &ZeroOutResult{Noop: true}, nil
		}
		matched, err := s.db.ZeroPointsIf(ctx, accountId, acc.Points)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue // balance moved since the read
		}
		tx, err := s.record(ctx, &entity.PointTransaction{
			AccountId: accountId,
			Amount:    -acc.Points,
			Kind:      entity.TxZeroOut,
			Reason:    reason,
		})
		if err != nil {
			return nil, err
		}
		return &ZeroOutResult{Amount: acc.Points, Tx: tx}, nil
	}
	return nil, entity.Ef(entity.KindConflict, "zero-out lost %d conditional updates", s.conf.Retries)
}

// Transactions returns the account's full ledger in commit order.
func (s *Service) Transactions(ctx context.Context, accountId int64) ([]*entity.PointTransaction, error) {
	return s.db.TransactionsByAccount(ctx, accountId)
}

// record appends the transaction after the balance change committed.
// A failure here leaves the cached balance ahead of the log; that is
// logged loudly for reconciliation, since there is no cross-document
// transaction to lean on.
func (s *Service) record(ctx context.Context, tx *entity.PointTransaction) (*entity.PointTransaction, error) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if err := s.db.InsertTransaction(ctx, tx); err != nil {
		s.log.Error("balance updated but transaction record failed",
			sl.Account(tx.AccountId),
			slog.Int64("amount", tx.Amount),
			slog.String("kind", string(tx.Kind)),
			sl.Err(err),
		)
		return nil, err
	}
	return tx, nil
}
