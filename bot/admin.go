package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"refledger/entity"
	"refledger/lib/sl"
)

const maxTelegramMessageLen = 4000

// activateCmd activates a registered account. The target is given as a
// numeric identity id, a phone number, or a @username; the lookup
// classifier decides which.
func (t *TgBot) activateCmd(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, "Usage: `/activate <id|phone|@username>`")
		return nil
	}

	opCtx, cancel := opCtx()
	defer cancel()

	target, err := t.core.ResolveAccount(opCtx, entity.ClassifyLookup(args[1]))
	if err != nil {
		t.reportError(chatId, "/activate", err)
		return nil
	}
	if target == nil {
		t.plainResponse(chatId, "Account not found: "+Sanitize(args[1]))
		return nil
	}

	result, err := t.core.ActivateAccount(opCtx, target.IdentityId)
	if err != nil {
		if entity.IsKind(err, entity.KindConflict) {
			t.plainResponse(chatId, "Account is already activated\\.")
			return nil
		}
		t.reportError(chatId, "/activate", err)
		return nil
	}

	t.plainResponse(chatId, "Account "+Sanitize(accountDisplayName(target))+" activated\\.")
	t.plainResponse(target.IdentityId, "Your account has been activated\\! Your points are now applied\\.")
	if result.Referrer != nil && result.Bonus > 0 {
		t.plainResponse(result.Referrer.IdentityId, fmt.Sprintf(
			"Your referral was activated\\! You earned *%d* bonus points\\.", result.Bonus,
		))
	}
	return nil
}

// usersCmd lists all registered accounts.
func (t *TgBot) usersCmd(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	opCtx, cancel := opCtx()
	defer cancel()

	accounts, err := t.core.ListAccounts(opCtx)
	if err != nil {
		t.reportError(chatId, "/users", err)
		return nil
	}
	if len(accounts) == 0 {
		t.plainResponse(chatId, "No registered accounts\\.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Accounts* \\(%d total\\)\n", len(accounts)))
	for _, acc := range accounts {
		status := "pending"
		if acc.IsActivated {
			status = "active"
		}
		sb.WriteString(Sanitize(fmt.Sprintf(
			"%s | code:%s | points:%d | %s\n",
			accountDisplayName(acc), acc.ReferralCode, acc.Points, status,
		)))
	}

	for _, part := range splitMessage(sb.String(), maxTelegramMessageLen) {
		t.plainResponse(chatId, part)
	}
	return nil
}

// addAdminCmd inserts an identity into the admin allow-list.
func (t *TgBot) addAdminCmd(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, "Usage: `/addadmin <id> [full|limited]`")
		return nil
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		t.plainResponse(chatId, "Admin id must be numeric\\.")
		return nil
	}
	level := entity.AccessLimited
	if len(args) > 2 && args[2] == entity.AccessFull {
		level = entity.AccessFull
	}

	opCtx, cancel := opCtx()
	defer cancel()

	err = t.core.AddAdmin(opCtx, &entity.AdminEntry{
		IdentityId:  id,
		AccessLevel: level,
	})
	if err != nil {
		if entity.IsKind(err, entity.KindConflict) {
			t.plainResponse(chatId, "Already an admin\\.")
			return nil
		}
		t.reportError(chatId, "/addadmin", err)
		return nil
	}

	t.plainResponse(chatId, fmt.Sprintf("Admin `%d` added with %s access\\.", id, level))
	return nil
}

func (t *TgBot) requireAdmin(chatId int64) bool {
	opCtx, cancel := opCtx()
	defer cancel()

	ok, err := t.core.IsAdmin(opCtx, chatId)
	if err != nil {
		t.log.Warn("admin check failed", sl.Err(err))
		return false
	}
	return ok
}
