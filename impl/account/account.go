package account

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"refledger/entity"
	"refledger/lib/clock"
	"refledger/lib/sl"
	"refledger/lib/validate"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Database defines the storage operations the account store depends on.
// Implemented by internal/database.MongoDB.
type Database interface {
	InsertAccount(ctx context.Context, account *entity.Account) error
	AccountByIdentity(ctx context.Context, identityId int64) (*entity.Account, error)
	AccountByPhone(ctx context.Context, phone string) (*entity.Account, error)
	AccountByReferralCode(ctx context.Context, code string) (*entity.Account, error)
	AccountByUsername(ctx context.Context, username string) (*entity.Account, error)
	AllAccounts(ctx context.Context) ([]*entity.Account, error)
}

type Config struct {
	CodeLength     int
	CodeAttempts   int
	Window         time.Duration
	NormalizeCodes bool
}

// Service owns account records and referral code issuance.
type Service struct {
	db   Database
	conf Config
	log  *slog.Logger
}

func New(db Database, conf Config, log *slog.Logger) *Service {
	if conf.CodeLength == 0 {
		conf.CodeLength = 6
	}
	if conf.CodeAttempts == 0 {
		conf.CodeAttempts = 5
	}
	if conf.Window == 0 {
		conf.Window = 48 * time.Hour
	}
	return &Service{
		db:   db,
		conf: conf,
		log:  log.With(sl.Module("account")),
	}
}

// Create registers a new account with a freshly generated referral code.
// On a code uniqueness collision the code is regenerated up to the
// attempt budget; a duplicate phone or identity is a Conflict.
func (s *Service) Create(ctx context.Context, params *entity.CreateAccountParams) (*entity.Account, error) {
	if err := validate.Struct(params); err != nil {
		return nil, entity.WrapE(entity.KindValidation, "create account", err)
	}

	if params.Phone != "" {
		existing, err := s.db.AccountByPhone(ctx, params.Phone)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, entity.ErrPhoneTaken
		}
	}

	now := time.Now().UTC()
	for attempt := 0; attempt < s.conf.CodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, err
		}
		acc := &entity.Account{
			IdentityId:   params.IdentityId,
			Username:     params.Username,
			FullName:     params.FullName,
			Phone:        params.Phone,
			ReferralCode: code,
			RegisteredAt: now,
			CodeDeadline: clock.Deadline(now, s.conf.Window),
		}
		err = s.db.InsertAccount(ctx, acc)
		if err == nil {
			s.log.Info("account created",
				sl.Account(acc.IdentityId),
				sl.Code(acc.ReferralCode),
			)
			return acc, nil
		}
		if !errors.Is(err, entity.ErrCodeTaken) {
			return nil, err
		}
		s.log.Debug("referral code collision, regenerating", sl.Code(code))
	}
	return nil, entity.Ef(entity.KindResourceExhausted,
		"referral code generation exhausted after %d attempts", s.conf.CodeAttempts)
}

// generateCode draws a fixed-length code uniformly from the uppercase
// alphanumeric alphabet.
func (s *Service) generateCode() (string, error) {
	b := make([]byte, s.conf.CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", entity.WrapE(entity.KindStoreUnavailable, "random source", err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// NormalizeCode applies the configured code comparison policy. Codes are
// generated uppercase; by default user input is uppercased before every
// comparison so redemption is case-insensitive.
func (s *Service) NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if s.conf.NormalizeCodes {
		code = strings.ToUpper(code)
	}
	return code
}

// ByIdentity returns the account or nil when absent. Absence is not an error.
func (s *Service) ByIdentity(ctx context.Context, identityId int64) (*entity.Account, error) {
	return s.db.AccountByIdentity(ctx, identityId)
}

func (s *Service) ByPhone(ctx context.Context, phone string) (*entity.Account, error) {
	return s.db.AccountByPhone(ctx, phone)
}

func (s *Service) ByReferralCode(ctx context.Context, code string) (*entity.Account, error) {
	return s.db.AccountByReferralCode(ctx, s.NormalizeCode(code))
}

// Resolve dispatches a classified lookup key to the matching query.
func (s *Service) Resolve(ctx context.Context, key entity.LookupKey) (*entity.Account, error) {
	switch key.Kind {
	case entity.LookupById:
		return s.db.AccountByIdentity(ctx, key.Id)
	case entity.LookupByPhone:
		return s.db.AccountByPhone(ctx, key.Phone)
	case entity.LookupByUsername:
		return s.db.AccountByUsername(ctx, key.Username)
	default:
		return nil, entity.E(entity.KindValidation, "unknown lookup kind")
	}
}

// List returns every account, for administrative reporting.
func (s *Service) List(ctx context.Context) ([]*entity.Account, error) {
	return s.db.AllAccounts(ctx)
}
