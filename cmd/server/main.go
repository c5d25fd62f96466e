package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"refledger/bot"
	"refledger/entity"
	"refledger/impl/account"
	"refledger/impl/admin"
	"refledger/impl/core"
	"refledger/impl/ledger"
	"refledger/impl/referral"
	"refledger/internal/config"
	"refledger/internal/database"
	"refledger/internal/http-server/api"
	"refledger/lib/logger"
	"refledger/lib/phone"
	"refledger/lib/sl"
)

const (
	logFileName     = "refledger.log"
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.Setup(conf.Env, filepath.Join(*logPath, logFileName))
	lg.Info("starting refledger", slog.String("config", *configPath), slog.String("env", conf.Env))

	db := database.NewMongoClient(conf)
	if db == nil {
		log.Fatal("mongodb is disabled in config; the service cannot run without its store")
	}
	connectStore(db, lg)
	defer db.Disconnect(context.Background())

	specs, err := database.LoadSchemaSpecs(conf.Mongo.SchemaDir)
	if err != nil {
		log.Fatal("loading schema specs: ", err)
	}

	accounts := account.New(db, account.Config{
		CodeLength:     conf.Referral.CodeLength,
		CodeAttempts:   conf.Referral.CodeAttempts,
		Window:         time.Duration(conf.Referral.WindowHours) * time.Hour,
		NormalizeCodes: conf.Referral.NormalizeCodes,
	}, lg)
	ledgerSvc := ledger.New(db, ledger.Config{Retries: conf.Referral.DebitRetries}, lg)
	referralSvc := referral.New(accounts, ledgerSvc, db, referral.Config{
		RedeemAward:     conf.Referral.RedeemAward,
		ReferrerAward:   conf.Referral.ReferrerAward,
		ActivationBonus: conf.Referral.ActivationBonus,
	}, lg)
	admins := admin.New(db, lg)
	c := core.New(accounts, ledgerSvc, referralSvc, admins, db, lg)

	if err := provisionSchemas(context.Background(), c, specs, connectBackoff, lg); err != nil {
		log.Fatal("schema provisioning: ", err)
	}

	if conf.Telegram.Enabled {
		normalizer, err := phone.New(conf.Telegram.Country)
		if err != nil {
			log.Fatal("phone normalizer: ", err)
		}
		tgBot, err := bot.NewTgBot(conf.Telegram.ApiKey, c, normalizer, lg)
		if err != nil {
			log.Fatal("telegram bot: ", err)
		}
		go func() {
			if err := tgBot.Start(); err != nil {
				lg.Error("telegram bot stopped", sl.Err(err))
			}
		}()
		defer tgBot.Stop()
	}

	if err := api.New(conf, lg, c); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error("error starting server", sl.Err(err))
	}
}

type schemaProvisioner interface {
	ProvisionSchemas(ctx context.Context, specs []entity.SchemaSpec) *entity.ProvisionReport
}

// provisionSchemas applies the schema specs, retrying whole runs with
// backoff while the store is unreachable; a store still down after the
// retry budget blocks startup. Definitional failures of single specs
// stay in the report and do not: the service starts with whatever
// converged and the next start retries the rest.
func provisionSchemas(ctx context.Context, prov schemaProvisioner, specs []entity.SchemaSpec, backoff time.Duration, lg *slog.Logger) error {
	delay := backoff
	for attempt := 1; ; attempt++ {
		report := prov.ProvisionSchemas(ctx, specs)
		switch {
		case report.Ok():
			lg.Info("schema provisioning complete", slog.Int("specs", len(report.Results)))
			return nil
		case !report.StoreUnavailable():
			// Per-spec failures are already logged by the provisioner.
			lg.Warn("schema provisioning finished with failures",
				slog.Int("failed", len(report.Failed())),
				slog.Int("specs", len(report.Results)),
			)
			return nil
		}
		if attempt >= connectAttempts {
			return fmt.Errorf("store unreachable after %d attempts", attempt)
		}
		lg.Warn("store unreachable while provisioning, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// connectStore dials the store with bounded backoff. Startup without a
// reachable store is fatal.
func connectStore(db *database.MongoDB, lg *slog.Logger) {
	delay := connectBackoff
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := db.Connect(ctx)
		cancel()
		if err == nil {
			lg.Info("connected to mongodb")
			return
		}
		if attempt >= connectAttempts {
			log.Fatal("mongodb unreachable: ", err)
		}
		lg.Warn("mongodb connect failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			sl.Err(err),
		)
		time.Sleep(delay)
		delay *= 2
	}
}
