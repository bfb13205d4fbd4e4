package handler

import (
	th "github.com/mymmrac/telego/telegohandler"

	"cyberlombard/internal/transport/bot/middleware"
)

func (h *Handler) RegisterRoutes(bh *th.BotHandler, adminIDs ...int64) {
	adminGroup := bh.Group(th.AnyMessage())
	adminGroup.Use(middleware.AdminOnly(adminIDs...))

	adminGroup.HandleMessage(h.OnStart, th.CommandEqual("start"))
	adminGroup.HandleMessage(h.OnDeal, th.CommandEqual("deal"))
	adminGroup.HandleMessage(h.OnHistory, th.CommandEqual("history"))
	adminGroup.HandleMessage(h.OnOwnerDeals, th.CommandEqual("deals"))
	adminGroup.HandleMessage(h.OnStats, th.CommandEqual("stats"))
	adminGroup.HandleMessage(h.OnSweep, th.CommandEqual("sweep"))
	adminGroup.HandleMessage(h.OnSweeperStatus, th.CommandEqual("sweeper"))
	adminGroup.HandleMessage(h.OnStartSweep, th.CommandEqual("startsweep"))
	adminGroup.HandleMessage(h.OnStopSweep, th.CommandEqual("stopsweep"))
	adminGroup.HandleMessage(h.OnRetryPayout, th.CommandEqual("retrypayout"))
	adminGroup.HandleMessage(h.OnRetryReturn, th.CommandEqual("retryreturn"))
	adminGroup.HandleMessage(h.OnCancel, th.CommandEqual("cancel"))

	cbGroup := bh.Group(th.AnyCallbackQuery())
	cbGroup.Use(middleware.AdminOnly(adminIDs...))

	cbGroup.HandleCallbackQuery(h.OnOwnerPageCallback, th.CallbackDataPrefix(callbackOwnerPage))
	cbGroup.HandleCallbackQuery(h.OnDealCallback, th.CallbackDataPrefix("deal_"))
}
