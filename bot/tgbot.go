// Package bot implements the Telegram surface of the referral service.
//
// Architecture overview:
//   - tgbot.go        — TgBot struct, lifecycle (Start/Stop), Core interface
//   - commands.go     — User commands: /start, /refcode, /points, /help
//   - admin.go        — Admin commands: /activate, /users, /addadmin
//   - registration.go — Registration conversation: phone -> optional referral code
//   - helpers.go      — Shared utilities: Sanitize, plainResponse, reportError
//
// Registration is a per-chat in-memory conversation: /start asks for a
// phone number, then for a referral code (skippable via inline button).
// The account is created once both answers are in; the code, when given,
// is redeemed right after creation. All business rules live behind Core.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"

	"refledger/entity"
	"refledger/impl/referral"
	"refledger/lib/phone"
	"refledger/lib/sl"
)

const cbSkipCode = "reg.skip"

// Core defines the service operations the bot depends on.
// Implemented by impl/core.Core.
type Core interface {
	CreateAccount(ctx context.Context, params *entity.CreateAccountParams) (*entity.Account, error)
	AccountByIdentity(ctx context.Context, identityId int64) (*entity.Account, error)
	AccountByPhone(ctx context.Context, phone string) (*entity.Account, error)
	ResolveAccount(ctx context.Context, key entity.LookupKey) (*entity.Account, error)
	ListAccounts(ctx context.Context) ([]*entity.Account, error)
	RedeemReferralCode(ctx context.Context, identityId int64, code string) (*referral.RedeemResult, error)
	ActivateAccount(ctx context.Context, identityId int64) (*referral.ActivateResult, error)
	PointTransactions(ctx context.Context, accountId int64) ([]*entity.PointTransaction, error)
	AddAdmin(ctx context.Context, entry *entity.AdminEntry) error
	IsAdmin(ctx context.Context, identityId int64) (bool, error)
}

// conversation is the per-chat registration state.
type conversation struct {
	state      convState
	phone      string
	registered bool // true when /refcode re-enters the code step after registration
}

type convState int

const (
	stateNone convState = iota
	stateAwaitPhone
	stateAwaitCode
)

// TgBot is the Telegram bot instance. Conversation state lives in
// memory per chat id, guarded by the mutex.
type TgBot struct {
	log     *slog.Logger
	api     *tgbotapi.Bot
	core    Core
	phone   *phone.Normalizer
	mu      sync.Mutex // guards conv
	conv    map[int64]*conversation
	updater *ext.Updater
}

func NewTgBot(apiKey string, core Core, normalizer *phone.Normalizer, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:   log.With(sl.Module("tgbot")),
		core:  core,
		phone: normalizer,
		conv:  make(map[int64]*conversation),
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	// User commands
	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("refcode", t.refcode))
	dispatcher.AddHandler(handlers.NewCommand("points", t.points))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))

	// Admin commands
	dispatcher.AddHandler(handlers.NewCommand("activate", t.activateCmd))
	dispatcher.AddHandler(handlers.NewCommand("users", t.usersCmd))
	dispatcher.AddHandler(handlers.NewCommand("addadmin", t.addAdminCmd))

	// Registration conversation
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbSkipCode), t.onSkipCallback))
	dispatcher.AddHandler(handlers.NewMessage(plainText, t.onText))

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		_ = t.updater.Stop()
	}
}

// plainText matches conversation input: any non-command text message.
func plainText(msg *tgbotapi.Message) bool {
	return msg.Text != "" && !strings.HasPrefix(msg.Text, "/")
}

// opCtx bounds one store round-trip triggered from a chat update.
func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func (t *TgBot) conversation(chatId int64) *conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conv[chatId]
	if !ok {
		c = &conversation{}
		t.conv[chatId] = c
	}
	return c
}

func (t *TgBot) clearConversation(chatId int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conv, chatId)
}
