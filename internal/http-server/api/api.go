package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refledger/internal/config"
	"refledger/internal/http-server/handlers/account"
	"refledger/internal/http-server/handlers/adminapi"
	"refledger/internal/http-server/handlers/errors"
	"refledger/internal/http-server/handlers/points"
	"refledger/internal/http-server/handlers/referral"
	"refledger/internal/http-server/middleware/authenticate"
	"refledger/internal/http-server/middleware/timeout"
	"refledger/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

// Handler is the full core surface the API exposes: one route per
// operation, all behind admin token authentication.
type Handler interface {
	authenticate.Authenticate
	account.Core
	referral.Core
	points.Core
	adminapi.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/accounts", func(acc chi.Router) {
			acc.Post("/", account.Register(log, handler))
			acc.Get("/", account.List(log, handler))
			acc.Get("/{key}", account.Get(log, handler))
			acc.Post("/{id}/activate", referral.Activate(log, handler))
			acc.Get("/{id}/edge", referral.Edge(log, handler))
			acc.Get("/{id}/transactions", points.Transactions(log, handler))
		})
		rootApi.Route("/referral", func(ref chi.Router) {
			ref.Post("/redeem", referral.Redeem(log, handler))
		})
		rootApi.Route("/points", func(pt chi.Router) {
			pt.Post("/credit", points.Credit(log, handler))
			pt.Post("/debit", points.Debit(log, handler))
			pt.Post("/zero-out", points.ZeroOut(log, handler))
		})
		rootApi.Route("/admins", func(adm chi.Router) {
			adm.Post("/", adminapi.Add(log, handler))
			adm.Get("/{id}", adminapi.Get(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
