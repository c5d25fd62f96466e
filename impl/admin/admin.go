package admin

import (
	"context"
	"log/slog"

	"refledger/entity"
	"refledger/lib/sl"
	"refledger/lib/validate"
)

// Database defines the storage operations the registry depends on.
// Implemented by internal/database.MongoDB.
type Database interface {
	InsertAdmin(ctx context.Context, admin *entity.AdminEntry) error
	AdminByIdentity(ctx context.Context, identityId int64) (*entity.AdminEntry, error)
	AdminByToken(ctx context.Context, token string) (*entity.AdminEntry, error)
}

// Service is the administrative allow-list. Entries are created here and
// read-only afterwards.
type Service struct {
	db  Database
	log *slog.Logger
}

func New(db Database, log *slog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With(sl.Module("admin")),
	}
}

// Add inserts a new admin entry; a duplicate identity is a Conflict.
func (s *Service) Add(ctx context.Context, entry *entity.AdminEntry) error {
	if err := validate.Struct(entry); err != nil {
		return entity.WrapE(entity.KindValidation, "add admin", err)
	}
	if err := s.db.InsertAdmin(ctx, entry); err != nil {
		return err
	}
	s.log.Info("admin added",
		sl.Account(entry.IdentityId),
		slog.String("access_level", entry.AccessLevel),
	)
	return nil
}

// IsAdmin is a pure lookup; absence is not an error.
func (s *Service) IsAdmin(ctx context.Context, identityId int64) (bool, error) {
	entry, err := s.db.AdminByIdentity(ctx, identityId)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Get returns the admin entry or nil when absent.
func (s *Service) Get(ctx context.Context, identityId int64) (*entity.AdminEntry, error) {
	return s.db.AdminByIdentity(ctx, identityId)
}

// ByToken authenticates an API bearer token against the registry.
func (s *Service) ByToken(ctx context.Context, token string) (*entity.AdminEntry, error) {
	if token == "" {
		return nil, entity.E(entity.KindValidation, "empty token")
	}
	return s.db.AdminByToken(ctx, token)
}
