package server

import "cyberlombard/pkg/contextx"

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// Server объединяет HTTP серверы отдельных частей API.
type Server struct {
	QuoteServer
	DealServer
	WebhookServer
	AdminServer

	tokens Tokens
}

// Tokens bearer токены закрытых зон. Пустой токен отключает проверку.
type Tokens struct {
	Admin   string
	Webhook string
}

func NewServer(
	quoteServer QuoteServer,
	dealServer DealServer,
	webhookServer WebhookServer,
	adminServer AdminServer,
	tokens Tokens,
) Server {
	return Server{
		QuoteServer:   quoteServer,
		DealServer:    dealServer,
		WebhookServer: webhookServer,
		AdminServer:   adminServer,
		tokens:        tokens,
	}
}
