package referral

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"refledger/entity"
	"refledger/lib/sl"
)

// Accounts is the slice of the account store the graph manager reads.
type Accounts interface {
	ByIdentity(ctx context.Context, identityId int64) (*entity.Account, error)
	ByReferralCode(ctx context.Context, code string) (*entity.Account, error)
	NormalizeCode(code string) string
}

// Ledger credits points; the graph manager never touches balances directly.
type Ledger interface {
	Credit(ctx context.Context, accountId, amount int64, reason string, refAccountId int64) (*entity.PointTransaction, error)
}

// Database defines the conditional writes the graph manager depends on.
// Implemented by internal/database.MongoDB.
type Database interface {
	SetReferrerIfUnset(ctx context.Context, identityId, referrerId int64) (bool, error)
	SetActivatedIfNot(ctx context.Context, identityId int64) (bool, error)
	InsertEdge(ctx context.Context, edge *entity.ReferralEdge) error
	ActivateEdgeIfPending(ctx context.Context, referredId int64, at time.Time) (bool, error)
	EdgeByReferred(ctx context.Context, referredId int64) (*entity.ReferralEdge, error)
}

type Config struct {
	RedeemAward     int64 // credited to the redeeming account
	ReferrerAward   int64 // credited to the referrer at redemption
	ActivationBonus int64 // credited to the referrer at activation
}

// Service validates and links referrer relationships and drives the
// point credits they earn.
type Service struct {
	accounts Accounts
	ledger   Ledger
	db       Database
	conf     Config
	log      *slog.Logger
}

func New(accounts Accounts, ledger Ledger, db Database, conf Config, log *slog.Logger) *Service {
	if conf.RedeemAward == 0 {
		conf.RedeemAward = 100
	}
	if conf.ReferrerAward == 0 {
		conf.ReferrerAward = 25
	}
	if conf.ActivationBonus == 0 {
		conf.ActivationBonus = 75
	}
	return &Service{
		accounts: accounts,
		ledger:   ledger,
		db:       db,
		conf:     conf,
		log:      log.With(sl.Module("referral")),
	}
}

// RedeemResult is returned to the caller for the messaging layer to act
// on. Partial means the referrer link committed but some follow-up write
// (edge or credit) did not; the missing pieces are retryable and must
// not be rolled back.
type RedeemResult struct {
	Referrer      *entity.Account `json:"referrer"`
	ReferredAward int64           `json:"referred_award"`
	ReferrerAward int64           `json:"referrer_award"`
	Partial       bool            `json:"partial,omitempty"`
}

// Redeem links a referral code to a freshly registered account and
// credits both sides. The conditional set-referrer write is the durable
// commitment point: everything before it only validates, everything
// after it is applied best-effort and reported, never rolled back.
func (s *Service) Redeem(ctx context.Context, identityId int64, code string) (*RedeemResult, error) {
	acc, err := s.accounts.ByIdentity(ctx, identityId)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, entity.Ef(entity.KindNotFound, "account %d not registered", identityId)
	}
	if acc.HasReferrer() {
		return nil, entity.E(entity.KindConflict, "account already has a referrer")
	}
	if !acc.RedeemWindowOpen(time.Now().UTC()) {
		return nil, entity.E(entity.KindDeadlineExceeded, "referral code window elapsed")
	}

	code = s.accounts.NormalizeCode(code)
	if code == acc.ReferralCode {
		return nil, entity.E(entity.KindValidation, "own referral code is not redeemable")
	}

	referrer, err := s.accounts.ByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, entity.Ef(entity.KindNotFound, "referral code %s not found", code)
	}
	if referrer.IdentityId == acc.IdentityId {
		return nil, entity.E(entity.KindValidation, "own referral code is not redeemable")
	}

	matched, err := s.db.SetReferrerIfUnset(ctx, acc.IdentityId, referrer.IdentityId)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, entity.E(entity.KindConflict, "lost referrer race to a concurrent redemption")
	}

	result := &RedeemResult{
		Referrer:      referrer,
		ReferredAward: s.conf.RedeemAward,
		ReferrerAward: s.conf.ReferrerAward,
	}
	logger := s.log.With(sl.Account(acc.IdentityId), slog.Int64("referrer", referrer.IdentityId))

	edge := &entity.ReferralEdge{
		ReferrerId: referrer.IdentityId,
		ReferredId: acc.IdentityId,
		Status:     entity.EdgePending,
		CreatedAt:  time.Now().UTC(),
	}
	if err = s.db.InsertEdge(ctx, edge); err != nil && !errors.Is(err, entity.ErrEdgeExists) {
		// The link is committed; a missing edge is a retryable
		// inconsistency, distinct from a failed redemption.
		logger.Warn("referrer linked but edge insert failed", sl.Err(err))
		result.Partial = true
	}

	if _, err = s.ledger.Credit(ctx, acc.IdentityId, s.conf.RedeemAward, entity.ReasonRedemption, referrer.IdentityId); err != nil {
		logger.Warn("referrer linked but referred credit failed", sl.Err(err))
		result.ReferredAward = 0
		result.Partial = true
	}
	if _, err = s.ledger.Credit(ctx, referrer.IdentityId, s.conf.ReferrerAward, entity.ReasonRedemption, acc.IdentityId); err != nil {
		logger.Warn("referrer linked but referrer credit failed", sl.Err(err))
		result.ReferrerAward = 0
		result.Partial = true
	}

	logger.Info("referral code redeemed", sl.Code(code))
	return result, nil
}

// ActivateResult summarizes an activation for downstream notification.
// Referrer carries the referrer's state after the bonus credit; nil when
// the account has no referrer.
type ActivateResult struct {
	Account       *entity.Account `json:"account"`
	Referrer      *entity.Account `json:"referrer,omitempty"`
	Bonus         int64           `json:"bonus,omitempty"`
	EdgeActivated bool            `json:"edge_activated"`
	Partial       bool            `json:"partial,omitempty"`
}

// Activate flips the account's activation flag, promotes its pending
// referral edge, and credits the referrer bonus. The conditional flag
// flip guards double activation: only the caller that wins it proceeds
// to the bonus, so the bonus lands exactly once.
func (s *Service) Activate(ctx context.Context, identityId int64) (*ActivateResult, error) {
	acc, err := s.accounts.ByIdentity(ctx, identityId)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, entity.Ef(entity.KindNotFound, "account %d not registered", identityId)
	}
	if acc.IsActivated {
		return nil, entity.E(entity.KindConflict, "account already activated")
	}

	matched, err := s.db.SetActivatedIfNot(ctx, acc.IdentityId)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, entity.E(entity.KindConflict, "account already activated")
	}
	acc.IsActivated = true

	result := &ActivateResult{Account: acc, Bonus: s.conf.ActivationBonus}
	logger := s.log.With(sl.Account(acc.IdentityId))

	activated, err := s.db.ActivateEdgeIfPending(ctx, acc.IdentityId, time.Now().UTC())
	if err != nil {
		logger.Warn("activation committed but edge transition failed", sl.Err(err))
		result.Partial = true
	}
	result.EdgeActivated = activated

	if acc.HasReferrer() {
		if _, err = s.ledger.Credit(ctx, acc.ReferrerId, s.conf.ActivationBonus, entity.ReasonActivation, acc.IdentityId); err != nil {
			logger.Warn("activation committed but referrer bonus failed",
				slog.Int64("referrer", acc.ReferrerId), sl.Err(err))
			result.Bonus = 0
			result.Partial = true
		}
		referrer, err := s.accounts.ByIdentity(ctx, acc.ReferrerId)
		if err == nil {
			result.Referrer = referrer
		}
	} else {
		result.Bonus = 0
	}

	logger.Info("account activated", slog.Bool("edge_activated", activated))
	return result, nil
}

// Edge returns the incoming referral edge of an account, nil when none.
func (s *Service) Edge(ctx context.Context, referredId int64) (*entity.ReferralEdge, error) {
	return s.db.EdgeByReferred(ctx, referredId)
}
