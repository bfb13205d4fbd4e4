package middleware

import (
	"slices"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
)

// AdminOnly пропускает только обновления от операторов из списка.
func AdminOnly(adminIDs ...int64) th.Handler {
	return func(ctx *th.Context, update telego.Update) error {
		if Allowed(update, adminIDs) {
			return ctx.Next(update)
		}
		return nil
	}
}

// Allowed проверяет отправителя обновления.
func Allowed(update telego.Update, adminIDs []int64) bool {
	var from *telego.User

	switch {
	case update.Message != nil:
		from = update.Message.From
	case update.CallbackQuery != nil:
		from = &update.CallbackQuery.From
	}

	return from != nil && slices.Contains(adminIDs, from.ID)
}
