package notifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/internal/infrastructure/notifier"
)

type senderStub struct {
	mu   sync.Mutex
	sent []*telego.SendMessageParams
	err  error
}

func (s *senderStub) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, params)
	if s.err != nil {
		return nil, s.err
	}
	return &telego.Message{MessageID: len(s.sent)}, nil
}

func (s *senderStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func sampleDeal() entity.Deal {
	return entity.Deal{
		ID:           "d1",
		Status:       entity.DealStatusDefault,
		LoanAmount:   decimal.NewFromInt(400),
		BuybackPrice: decimal.RequireFromString("492.2"),
		OptionExpiry: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestFormatEvent(t *testing.T) {
	rq := require.New(t)

	text := notifier.FormatEvent(deal.Event{
		Kind:   deal.EventPayoutFailed,
		Deal:   sampleDeal(),
		Detail: "card <declined>",
	})

	rq.Contains(text, "Выплата не прошла")
	rq.Contains(text, "<code>d1</code>")
	rq.Contains(text, "400.00 ₽")
	rq.Contains(text, "492.20 ₽")
	rq.Contains(text, "15.03.2025 12:00")
	rq.Contains(text, "card &lt;declined&gt;")
}

func TestTelegramBot_Run(t *testing.T) {
	rq := require.New(t)

	sender := &senderStub{}
	bot := notifier.NewTelegramBotWithSender(sender, 42).
		WithKinds(deal.EventDefaulted, deal.EventPayoutFailed)

	events := make(chan deal.Event, 3)
	events <- deal.Event{Kind: deal.EventCreated, Deal: sampleDeal()}
	events <- deal.Event{Kind: deal.EventDefaulted, Deal: sampleDeal()}
	events <- deal.Event{Kind: deal.EventPayoutFailed, Deal: sampleDeal()}
	close(events)

	rq.NoError(bot.Run(context.Background(), events))
	rq.Equal(2, sender.count())
	rq.Equal(telego.ModeHTML, sender.sent[0].ParseMode)
	rq.Equal(int64(42), sender.sent[0].ChatID.ID)
}

func TestTelegramBot_RunSurvivesSendErrors(t *testing.T) {
	rq := require.New(t)

	sender := &senderStub{err: errors.New("chat not found")}
	bot := notifier.NewTelegramBotWithSender(sender, 42)

	events := make(chan deal.Event, 2)
	events <- deal.Event{Kind: deal.EventDefaulted, Deal: sampleDeal()}
	events <- deal.Event{Kind: deal.EventExpiring, Deal: sampleDeal()}
	close(events)

	rq.NoError(bot.Run(context.Background(), events))
	rq.Equal(2, sender.count())
}

func TestTelegramBot_RunStopsOnCancel(t *testing.T) {
	rq := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := notifier.NewTelegramBotWithSender(&senderStub{}, 1).Run(ctx, make(chan deal.Event))
	rq.ErrorIs(err, context.Canceled)
}
