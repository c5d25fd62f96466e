package referral

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refledger/entity"
	"refledger/impl/referral"
	"refledger/lib/api/response"
	"refledger/lib/sl"
	"refledger/lib/validate"
)

type Core interface {
	RedeemReferralCode(ctx context.Context, identityId int64, code string) (*referral.RedeemResult, error)
	ActivateAccount(ctx context.Context, identityId int64) (*referral.ActivateResult, error)
	ReferralEdge(ctx context.Context, referredId int64) (*entity.ReferralEdge, error)
}

type redeemRequest struct {
	IdentityId int64  `json:"identity_id" validate:"required"`
	Code       string `json:"code" validate:"required"`
}

func (rr *redeemRequest) Bind(_ *http.Request) error {
	return validate.Struct(rr)
}

// Redeem links a referral code to the given account.
func Redeem(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.referral"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req redeemRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}
		logger = logger.With(sl.Account(req.IdentityId), sl.Code(req.Code))

		result, err := handler.RedeemReferralCode(r.Context(), req.IdentityId, req.Code)
		if err != nil {
			logger.Error("redeem code", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("code redeemed", slog.Bool("partial", result.Partial))

		render.JSON(w, r, response.Ok(result))
	}
}

// Activate flips the activation flag of the account in the {id} path segment.
func Activate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.referral"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid account id"))
			return
		}
		logger = logger.With(sl.Account(id))

		result, err := handler.ActivateAccount(r.Context(), id)
		if err != nil {
			logger.Error("activate account", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("account activated", slog.Bool("edge_activated", result.EdgeActivated))

		render.JSON(w, r, response.Ok(result))
	}
}

// Edge returns the incoming referral edge of the account, if any.
func Edge(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.referral"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid account id"))
			return
		}

		edge, err := handler.ReferralEdge(r.Context(), id)
		if err != nil {
			logger.Error("get edge", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if edge == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("No referral edge"))
			return
		}

		render.JSON(w, r, response.Ok(edge))
	}
}
