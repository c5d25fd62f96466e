package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refledger/entity"
	"refledger/lib/api/response"
	"refledger/lib/sl"
)

type Core interface {
	CreateAccount(ctx context.Context, params *entity.CreateAccountParams) (*entity.Account, error)
	ResolveAccount(ctx context.Context, key entity.LookupKey) (*entity.Account, error)
	ListAccounts(ctx context.Context) ([]*entity.Account, error)
}

// Register creates an account from the posted registration parameters.
func Register(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.account"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var params entity.CreateAccountParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}
		logger = logger.With(sl.Account(params.IdentityId))

		acc, err := handler.CreateAccount(r.Context(), &params)
		if err != nil {
			logger.Error("create account", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("account registered", sl.Code(acc.ReferralCode))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(acc))
	}
}

// Get resolves the {key} path segment (identity id, phone or @username)
// through the lookup classifier and returns the matching account.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.account"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		raw := chi.URLParam(r, "key")
		key := entity.ClassifyLookup(raw)

		acc, err := handler.ResolveAccount(r.Context(), key)
		if err != nil {
			logger.Error("resolve account", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if acc == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Account not found"))
			return
		}

		render.JSON(w, r, response.Ok(acc))
	}
}

// List returns every account, for administrative reporting.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.account"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		accounts, err := handler.ListAccounts(r.Context())
		if err != nil {
			logger.Error("list accounts", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		render.JSON(w, r, response.Ok(accounts))
	}
}
