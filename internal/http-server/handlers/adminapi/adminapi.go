package adminapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refledger/entity"
	"refledger/lib/api/cont"
	"refledger/lib/api/response"
	"refledger/lib/sl"
)

type Core interface {
	AddAdmin(ctx context.Context, entry *entity.AdminEntry) error
	GetAdmin(ctx context.Context, identityId int64) (*entity.AdminEntry, error)
}

// Add inserts a new admin allow-list entry.
func Add(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.adminapi"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var entry entity.AdminEntry
		if err := render.Bind(r, &entry); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}
		logger = logger.With(
			sl.Account(entry.IdentityId),
			slog.Int64("acting_admin", cont.GetAdmin(r.Context()).IdentityId),
		)

		if err := handler.AddAdmin(r.Context(), &entry); err != nil {
			logger.Error("add admin", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("admin added")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(entry))
	}
}

// Get returns the admin entry for the {id} path segment.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.adminapi"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid admin id"))
			return
		}

		entry, err := handler.GetAdmin(r.Context(), id)
		if err != nil {
			logger.Error("get admin", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if entry == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Admin not found"))
			return
		}

		render.JSON(w, r, response.Ok(entry))
	}
}
