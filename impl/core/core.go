package core

import (
	"context"
	"log/slog"
	"time"

	"refledger/entity"
	"refledger/impl/ledger"
	"refledger/impl/referral"
	"refledger/lib/sl"
)

// AccountService is the account store surface the core exposes.
type AccountService interface {
	Create(ctx context.Context, params *entity.CreateAccountParams) (*entity.Account, error)
	ByIdentity(ctx context.Context, identityId int64) (*entity.Account, error)
	ByPhone(ctx context.Context, phone string) (*entity.Account, error)
	ByReferralCode(ctx context.Context, code string) (*entity.Account, error)
	Resolve(ctx context.Context, key entity.LookupKey) (*entity.Account, error)
	List(ctx context.Context) ([]*entity.Account, error)
}

type LedgerService interface {
	Credit(ctx context.Context, accountId, amount int64, reason string, refAccountId int64) (*entity.PointTransaction, error)
	Debit(ctx context.Context, accountId, amount int64, reason string) (*entity.PointTransaction, error)
	ZeroOut(ctx context.Context, accountId int64, reason string) (*ledger.ZeroOutResult, error)
	Transactions(ctx context.Context, accountId int64) ([]*entity.PointTransaction, error)
}

type ReferralService interface {
	Redeem(ctx context.Context, identityId int64, code string) (*referral.RedeemResult, error)
	Activate(ctx context.Context, identityId int64) (*referral.ActivateResult, error)
	Edge(ctx context.Context, referredId int64) (*entity.ReferralEdge, error)
}

type AdminService interface {
	Add(ctx context.Context, entry *entity.AdminEntry) error
	IsAdmin(ctx context.Context, identityId int64) (bool, error)
	Get(ctx context.Context, identityId int64) (*entity.AdminEntry, error)
	ByToken(ctx context.Context, token string) (*entity.AdminEntry, error)
}

type Provisioner interface {
	Provision(ctx context.Context, specs []entity.SchemaSpec, log *slog.Logger) *entity.ProvisionReport
}

// Core is the in-process API surface consumed by the bot and the HTTP
// server. Lookups retry transient store failures a few times with
// backoff; mutations surface them immediately, since their outcome must
// be re-read rather than blindly retried.
type Core struct {
	accounts  AccountService
	ledger    LedgerService
	referrals ReferralService
	admins    AdminService
	prov      Provisioner
	log       *slog.Logger
}

func New(accounts AccountService, ledger LedgerService, referrals ReferralService, admins AdminService, prov Provisioner, log *slog.Logger) *Core {
	return &Core{
		accounts:  accounts,
		ledger:    ledger,
		referrals: referrals,
		admins:    admins,
		prov:      prov,
		log:       log.With(sl.Module("core")),
	}
}

const (
	lookupRetries = 3
	retryBase     = 100 * time.Millisecond
)

// retryLookup re-runs a read-only store round-trip on transient failure.
func retryLookup[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	var err error
	delay := retryBase
	for attempt := 0; attempt < lookupRetries; attempt++ {
		result, err = fn()
		if err == nil || !entity.IsKind(err, entity.KindStoreUnavailable) {
			return result, err
		}
		select {
		case <-ctx.Done():
			return result, err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return result, err
}

func (c *Core) CreateAccount(ctx context.Context, params *entity.CreateAccountParams) (*entity.Account, error) {
	return c.accounts.Create(ctx, params)
}

func (c *Core) AccountByIdentity(ctx context.Context, identityId int64) (*entity.Account, error) {
	return retryLookup(ctx, func() (*entity.Account, error) {
		return c.accounts.ByIdentity(ctx, identityId)
	})
}

func (c *Core) AccountByPhone(ctx context.Context, phone string) (*entity.Account, error) {
	return retryLookup(ctx, func() (*entity.Account, error) {
		return c.accounts.ByPhone(ctx, phone)
	})
}

func (c *Core) AccountByReferralCode(ctx context.Context, code string) (*entity.Account, error) {
	return retryLookup(ctx, func() (*entity.Account, error) {
		return c.accounts.ByReferralCode(ctx, code)
	})
}

func (c *Core) ResolveAccount(ctx context.Context, key entity.LookupKey) (*entity.Account, error) {
	return retryLookup(ctx, func() (*entity.Account, error) {
		return c.accounts.Resolve(ctx, key)
	})
}

func (c *Core) ListAccounts(ctx context.Context) ([]*entity.Account, error) {
	return retryLookup(ctx, func() ([]*entity.Account, error) {
		return c.accounts.List(ctx)
	})
}

func (c *Core) RedeemReferralCode(ctx context.Context, identityId int64, code string) (*referral.RedeemResult, error) {
	return c.referrals.Redeem(ctx, identityId, code)
}

func (c *Core) ActivateAccount(ctx context.Context, identityId int64) (*referral.ActivateResult, error) {
	return c.referrals.Activate(ctx, identityId)
}

func (c *Core) ReferralEdge(ctx context.Context, referredId int64) (*entity.ReferralEdge, error) {
	return retryLookup(ctx, func() (*entity.ReferralEdge, error) {
		return c.referrals.Edge(ctx, referredId)
	})
}

func (c *Core) CreditPoints(ctx context.Context, accountId, amount int64, reason string, refAccountId int64) (*entity.PointTransaction, error) {
	return c.ledger.Credit(ctx, accountId, amount, reason, refAccountId)
}

func (c *Core) DebitPoints(ctx context.Context, accountId, amount int64, reason string) (*entity.PointTransaction, error) {
	return c.ledger.Debit(ctx, accountId, amount, reason)
}

func (c *Core) ZeroOutPoints(ctx context.Context, accountId int64, reason string) (*ledger.ZeroOutResult, error) {
	return c.ledger.ZeroOut(ctx, accountId, reason)
}

func (c *Core) PointTransactions(ctx context.Context, accountId int64) ([]*entity.PointTransaction, error) {
	return retryLookup(ctx, func() ([]*entity.PointTransaction, error) {
		return c.ledger.Transactions(ctx, accountId)
	})
}

func (c *Core) AddAdmin(ctx context.Context, entry *entity.AdminEntry) error {
	return c.admins.Add(ctx, entry)
}

func (c *Core) IsAdmin(ctx context.Context, identityId int64) (bool, error) {
	return retryLookup(ctx, func() (bool, error) {
		return c.admins.IsAdmin(ctx, identityId)
	})
}

func (c *Core) GetAdmin(ctx context.Context, identityId int64) (*entity.AdminEntry, error) {
	return retryLookup(ctx, func() (*entity.AdminEntry, error) {
		return c.admins.Get(ctx, identityId)
	})
}

// AdminByToken backs the HTTP authenticate middleware.
func (c *Core) AdminByToken(ctx context.Context, token string) (*entity.AdminEntry, error) {
	return retryLookup(ctx, func() (*entity.AdminEntry, error) {
		return c.admins.ByToken(ctx, token)
	})
}

// ProvisionSchemas applies the schema specs and returns the report.
func (c *Core) ProvisionSchemas(ctx context.Context, specs []entity.SchemaSpec) *entity.ProvisionReport {
	return c.prov.Provision(ctx, specs, c.log)
}
