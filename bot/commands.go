package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"refledger/entity"
)

// start greets a registered account with its status, or opens the
// registration conversation.
func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	opCtx, cancel := opCtx()
	defer cancel()

	acc, err := t.core.AccountByIdentity(opCtx, chatId)
	if err != nil {
		t.reportError(chatId, "/start", err)
		return nil
	}
	if acc != nil {
		t.plainResponse(chatId, t.statusText(acc))
		return nil
	}

	conv := t.conversation(chatId)
	conv.state = stateAwaitPhone
	conv.registered = false
	t.plainResponse(chatId, "Welcome\\! Please send your phone number to register\\.")
	return nil
}

// refcode lets a registered account enter a referral code after the
// fact, while the redemption window is still open.
func (t *TgBot) refcode(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	opCtx, cancel := opCtx()
	defer cancel()

	acc, err := t.core.AccountByIdentity(opCtx, chatId)
	if err != nil {
		t.reportError(chatId, "/refcode", err)
		return nil
	}
	if acc == nil {
		t.plainResponse(chatId, "You are not registered yet\\. Use /start first\\.")
		return nil
	}
	if acc.HasReferrer() {
		t.plainResponse(chatId, "You already have a referrer\\.")
		return nil
	}
	if !acc.RedeemWindowOpen(time.Now().UTC()) {
		t.plainResponse(chatId, "The referral code window has closed\\.")
		return nil
	}

	conv := t.conversation(chatId)
	conv.state = stateAwaitCode
	conv.registered = true
	t.plainResponse(chatId, "Send the referral code you want to redeem\\.")
	return nil
}

// points shows the balance and the most recent ledger entries.
func (t *TgBot) points(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	opCtx, cancel := opCtx()
	defer cancel()

	acc, err := t.core.AccountByIdentity(opCtx, chatId)
	if err != nil {
		t.reportError(chatId, "/points", err)
		return nil
	}
	if acc == nil {
		t.plainResponse(chatId, "You are not registered yet\\. Use /start first\\.")
		return nil
	}

	txs, err := t.core.PointTransactions(opCtx, chatId)
	if err != nil {
		t.reportError(chatId, "/points", err)
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Balance: *%d* points\n", acc.Points))
	if n := len(txs); n > 0 {
		sb.WriteString("Recent:\n")
		if n > 5 {
			txs = txs[n-5:]
		}
		for _, tx := range txs {
			sb.WriteString(Sanitize(fmt.Sprintf("  %+d %s\n", tx.Amount, tx.Reason)))
		}
	}
	t.plainResponse(chatId, sb.String())
	return nil
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	text := "Commands:\n" +
		"/start \\- register or show your account\n" +
		"/refcode \\- redeem a referral code\n" +
		"/points \\- show your balance\n" +
		"/help \\- this message"
	t.plainResponse(chatId, text)
	return nil
}

func (t *TgBot) statusText(acc *entity.Account) string {
	activated := "pending admin activation"
	if acc.IsActivated {
		activated = "activated"
	}
	return fmt.Sprintf(
		"You are registered\\.\nReferral code: `%s`\nBalance: *%d* points\nStatus: %s",
		Sanitize(acc.ReferralCode), acc.Points, Sanitize(activated),
	)
}
