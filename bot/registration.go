package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"refledger/entity"
)

// onText advances the registration conversation for the chat.
// Messages outside a conversation are ignored.
func (t *TgBot) onText(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	text := strings.TrimSpace(ctx.EffectiveMessage.Text)

	t.mu.Lock()
	conv, ok := t.conv[chatId]
	t.mu.Unlock()
	if !ok || conv.state == stateNone {
		return nil
	}

	switch conv.state {
	case stateAwaitPhone:
		t.onPhoneInput(ctx, conv, text)
	case stateAwaitCode:
		t.onCodeInput(ctx, conv, text)
	}
	return nil
}

func (t *TgBot) onPhoneInput(ctx *ext.Context, conv *conversation, text string) {
	chatId := ctx.EffectiveUser.Id

	if !t.phone.Valid(text) {
		t.plainResponse(chatId, "That does not look like a valid phone number\\. Please try again\\.")
		return
	}
	normalized := t.phone.Normalize(text)

	opCtx, cancel := opCtx()
	defer cancel()

	existing, err := t.core.AccountByPhone(opCtx, normalized)
	if err != nil {
		t.reportError(chatId, "registration", err)
		return
	}
	if existing != nil {
		t.plainResponse(chatId, "This phone number is already registered\\. Contact an administrator if it is yours\\.")
		return
	}

	conv.phone = normalized
	conv.state = stateAwaitCode

	keyboard := tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{{
			{Text: "Skip", CallbackData: cbSkipCode},
		}},
	}
	t.sendWithKeyboard(chatId,
		"Phone accepted\\!\nIf you have a referral code, send it now to earn bonus points\\. "+
			"The code can be entered within 48 hours of registration\\.",
		keyboard,
	)
}

func (t *TgBot) onCodeInput(ctx *ext.Context, conv *conversation, code string) {
	chatId := ctx.EffectiveUser.Id

	// /refcode flow: account exists, only the redemption is left.
	if conv.registered {
		t.redeemAndReport(ctx, code)
		t.clearConversation(chatId)
		return
	}

	acc := t.createAccount(ctx, conv)
	if acc == nil {
		return
	}
	t.redeemAndReport(ctx, code)
	t.plainResponse(chatId, t.registrationSummary(acc))
	t.clearConversation(chatId)
}

// onSkipCallback completes registration without a referral code.
func (t *TgBot) onSkipCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	_, _ = ctx.CallbackQuery.Answer(t.api, nil)

	t.mu.Lock()
	conv, ok := t.conv[chatId]
	t.mu.Unlock()
	if !ok || conv.state != stateAwaitCode || conv.registered {
		return nil
	}

	acc := t.createAccount(ctx, conv)
	if acc == nil {
		return nil
	}
	t.plainResponse(chatId, t.registrationSummary(acc))
	t.clearConversation(chatId)
	return nil
}

func (t *TgBot) createAccount(ctx *ext.Context, conv *conversation) *entity.Account {
	chatId := ctx.EffectiveUser.Id

	opCtx, cancel := opCtx()
	defer cancel()

	acc, err := t.core.CreateAccount(opCtx, &entity.CreateAccountParams{
		IdentityId: chatId,
		Username:   ctx.EffectiveUser.Username,
		FullName:   strings.TrimSpace(ctx.EffectiveUser.FirstName + " " + ctx.EffectiveUser.LastName),
		Phone:      conv.phone,
	})
	if err != nil {
		t.reportError(chatId, "registration", err)
		t.clearConversation(chatId)
		return nil
	}
	return acc
}

func (t *TgBot) redeemAndReport(ctx *ext.Context, code string) {
	chatId := ctx.EffectiveUser.Id

	opCtx, cancel := opCtx()
	defer cancel()

	result, err := t.core.RedeemReferralCode(opCtx, chatId, code)
	if err != nil {
		t.plainResponse(chatId, "Could not apply the referral code: "+Sanitize(err.Error()))
		return
	}
	t.plainResponse(chatId, fmt.Sprintf(
		"Referral code applied\\! You earned *%d* points\\.", result.ReferredAward,
	))
}

func (t *TgBot) registrationSummary(acc *entity.Account) string {
	return fmt.Sprintf(
		"Registration complete\\!\nYour referral code: `%s`\n"+
			"Points are applied after an administrator activates your account\\.",
		Sanitize(acc.ReferralCode),
	)
}
