package deal

import (
	"context"
	"log/slog"
	"time"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/logx"
)

type EventKind string

const (
	EventCreated      EventKind = "created"
	EventActivated    EventKind = "activated"
	EventPayoutFailed EventKind = "payout_failed"
	EventBuyback      EventKind = "buyback"
	EventReturned     EventKind = "returned"
	EventReturnFailed EventKind = "return_failed"
	EventDefaulted    EventKind = "defaulted"
	EventCancelled    EventKind = "cancelled"
	EventExpiring     EventKind = "expiring"
	EventTradeFailed  EventKind = "trade_failed"

	EventCustodyOrphaned EventKind = "custody_orphaned"
)

// Event уведомление для операторов о событии сделки.
type Event struct {
	Kind   EventKind
	Deal   entity.Deal
	Detail string
	At     time.Time
}

// publish не блокирует переход: если очередь уведомлений заполнена,
// событие теряется с предупреждением в логе.
func (s *Service) publish(ctx context.Context, kind EventKind, d entity.Deal, detail string) {
	if s.events == nil {
		return
	}

	select {
	case s.events <- Event{Kind: kind, Deal: d, Detail: detail, At: s.clock.Now()}:
	default:
		logger(ctx).Warn("event queue is full, notification dropped",
			slog.String(logx.FieldDealID, d.ID),
			slog.String("event", string(kind)),
		)
	}
}
