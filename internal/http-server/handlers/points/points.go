package points

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refledger/entity"
	"refledger/impl/ledger"
	"refledger/lib/api/cont"
	"refledger/lib/api/response"
	"refledger/lib/sl"
	"refledger/lib/validate"
)

type Core interface {
	CreditPoints(ctx context.Context, accountId, amount int64, reason string, refAccountId int64) (*entity.PointTransaction, error)
	DebitPoints(ctx context.Context, accountId, amount int64, reason string) (*entity.PointTransaction, error)
	ZeroOutPoints(ctx context.Context, accountId int64, reason string) (*ledger.ZeroOutResult, error)
	PointTransactions(ctx context.Context, accountId int64) ([]*entity.PointTransaction, error)
}

type mutationRequest struct {
	AccountId    int64  `json:"account_id" validate:"required"`
	Amount       int64  `json:"amount" validate:"omitempty"`
	Reason       string `json:"reason" validate:"required"`
	RefAccountId int64  `json:"ref_account_id" validate:"omitempty"`
}

func (m *mutationRequest) Bind(_ *http.Request) error {
	return validate.Struct(m)
}

// Credit adds points to an account.
func Credit(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.points"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req mutationRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}
		logger = logger.With(
			sl.Account(req.AccountId),
			slog.Int64("amount", req.Amount),
			slog.Int64("acting_admin", cont.GetAdmin(r.Context()).IdentityId),
		)

		tx, err := handler.CreditPoints(r.Context(), req.AccountId, req.Amount, req.Reason, req.RefAccountId)
		if err != nil {
			logger.Error("credit points", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("points credited", slog.String("tx", tx.TxId))

		render.JSON(w, r, response.Ok(tx))
	}
}

// Debit subtracts points; the balance never goes negative.
func Debit(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.points"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req mutationRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}
		logger = logger.With(
			sl.Account(req.AccountId),
			slog.Int64("amount", req.Amount),
			slog.Int64("acting_admin", cont.GetAdmin(r.Context()).IdentityId),
		)

		tx, err := handler.DebitPoints(r.Context(), req.AccountId, req.Amount, req.Reason)
		if err != nil {
			logger.Error("debit points", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("points debited", slog.String("tx", tx.TxId))

		render.JSON(w, r, response.Ok(tx))
	}
}

// ZeroOut clears the balance; already-zero is reported as a no-op.
func ZeroOut(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.points"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req mutationRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}
		logger = logger.With(
			sl.Account(req.AccountId),
			slog.Int64("acting_admin", cont.GetAdmin(r.Context()).IdentityId),
		)

		result, err := handler.ZeroOutPoints(r.Context(), req.AccountId, req.Reason)
		if err != nil {
			logger.Error("zero out points", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("points zeroed", slog.Int64("amount", result.Amount), slog.Bool("noop", result.Noop))

		render.JSON(w, r, response.Ok(result))
	}
}

// Transactions returns the account's ledger in commit order.
func Transactions(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.points"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid account id"))
			return
		}

		txs, err := handler.PointTransactions(r.Context(), id)
		if err != nil {
			logger.Error("list transactions", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		render.JSON(w, r, response.Ok(txs))
	}
}
