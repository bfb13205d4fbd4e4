package persistence

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/pkg/errcodes"
)

type memoryDeal struct {
	mu   sync.Mutex
	deal entity.Deal
}

// MemoryRepository хранит сделки в памяти процесса. Переходы одной сделки
// сериализуются её мьютексом, разные сделки не блокируют друг друга.
type MemoryRepository struct {
	mu      sync.RWMutex
	deals   map[string]*memoryDeal
	order   []string
	trades  map[string]entity.Trade // offer_id -> trade
	history map[string][]entity.StatusChange
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		deals:   make(map[string]*memoryDeal),
		trades:  make(map[string]entity.Trade),
		history: make(map[string][]entity.StatusChange),
	}
}

func (r *MemoryRepository) Create(_ context.Context, deal entity.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deals[deal.ID]; ok {
		return domain.NewErrorf(errcodes.InternalServerError, "deal %s already exists", deal.ID)
	}

	deal.Trades = nil
	r.deals[deal.ID] = &memoryDeal{deal: cloneDeal(deal)}
	r.order = append(r.order, deal.ID)

	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (entity.Deal, error) {
	md, err := r.lookup(id)
	if err != nil {
		return entity.Deal{}, err
	}

	md.mu.Lock()
	deal := cloneDeal(md.deal)
	md.mu.Unlock()

	deal.Trades = r.tradesOf(id)

	return deal, nil
}

func (r *MemoryRepository) Update(
	_ context.Context,
	id string,
	fn func(*entity.Deal) error,
) (entity.Deal, error) {
	md, err := r.lookup(id)
	if err != nil {
		return entity.Deal{}, err
	}

	md.mu.Lock()
	defer md.mu.Unlock()

	deal := cloneDeal(md.deal)
	deal.Trades = r.tradesOf(id)
	from := deal.Status

	if err := fn(&deal); err != nil {
		return entity.Deal{}, err
	}

	stored := cloneDeal(deal)
	stored.Trades = nil
	md.deal = stored

	if deal.Status != from {
		r.mu.Lock()
		r.history[id] = append(r.history[id], entity.StatusChange{
			DealID: id,
			From:   from,
			To:     deal.Status,
			Reason: string(deal.LastEvent()),
			At:     deal.UpdatedAt,
		})
		r.mu.Unlock()
	}

	return deal, nil
}

func (r *MemoryRepository) ListExpired(
	_ context.Context,
	now time.Time,
	after entity.ExpiryCursor,
	limit int,
) ([]entity.Deal, error) {
	deals := r.filter(func(d entity.Deal) bool {
		return d.Status == entity.DealStatusActive && d.OptionExpiry.Before(now) && after.After(d)
	})
	slices.SortFunc(deals, func(a, b entity.Deal) int {
		if c := a.OptionExpiry.Compare(b.OptionExpiry); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return limitDeals(deals, limit), nil
}

func (r *MemoryRepository) ListStalePending(_ context.Context, before time.Time, limit int) ([]entity.Deal, error) {
	deals := r.filter(func(d entity.Deal) bool {
		return d.Status == entity.DealStatusPending && d.CreatedAt.Before(before)
	})

	return limitDeals(deals, limit), nil
}

func (r *MemoryRepository) ListExpiring(_ context.Context, now, until time.Time, limit int) ([]entity.Deal, error) {
	deals := r.filter(func(d entity.Deal) bool {
		return d.Status == entity.DealStatusActive &&
			d.ExpiryNotifiedAt == nil &&
			!d.OptionExpiry.Before(now) &&
			!d.OptionExpiry.After(until)
	})
	slices.SortStableFunc(deals, func(a, b entity.Deal) int { return a.OptionExpiry.Compare(b.OptionExpiry) })

	return limitDeals(deals, limit), nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]entity.Deal, error) {
	deals := r.filter(func(d entity.Deal) bool { return d.Owner.ID == ownerID })
	slices.Reverse(deals)

	return deals, nil
}

func (r *MemoryRepository) History(_ context.Context, id string) ([]entity.StatusChange, error) {
	if _, err := r.lookup(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.history[id]), nil
}

func (r *MemoryRepository) Stats(_ context.Context) (entity.DealStats, error) {
	acc := newStatsAccumulator()

	for _, d := range r.filter(func(entity.Deal) bool { return true }) {
		acc.add(d.Status, 1, d.LoanAmount, d.BuybackPrice, d.MarketTotal)
	}

	return acc.stats, nil
}

func (r *MemoryRepository) CreateTrade(_ context.Context, trade entity.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deals[trade.DealID]; !ok {
		return domain.NewErrorf(errcodes.DealNotFound, "deal %s not found", trade.DealID)
	}
	if _, ok := r.trades[trade.OfferID]; ok {
		return domain.NewErrorf(errcodes.InvalidTransition, "trade offer %s already exists", trade.OfferID)
	}

	for _, t := range r.trades {
		if t.DealID == trade.DealID && t.Direction == trade.Direction && t.Status.Active() && trade.Status.Active() {
			return domain.NewError(errcodes.InvalidTransition, "deal already has an active trade in this direction")
		}
	}

	r.trades[trade.OfferID] = trade

	return nil
}

func (r *MemoryRepository) TradeByOffer(_ context.Context, offerID string) (entity.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.trades[offerID]
	if !ok {
		return entity.Trade{}, domain.NewErrorf(errcodes.TradeNotFound, "trade offer %s not found", offerID)
	}

	return t, nil
}

func (r *MemoryRepository) CloseTrade(
	_ context.Context,
	offerID string,
	status entity.TradeStatus,
	now time.Time,
) (entity.Trade, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trades[offerID]
	if !ok {
		return entity.Trade{}, false, domain.NewErrorf(errcodes.TradeNotFound, "trade offer %s not found", offerID)
	}
	if !t.Status.Active() {
		return t, false, nil
	}

	t.Status = status
	t.UpdatedAt = now
	r.trades[offerID] = t

	return t, true, nil
}

func (r *MemoryRepository) lookup(id string) (*memoryDeal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	md, ok := r.deals[id]
	if !ok {
		return nil, domain.NewErrorf(errcodes.DealNotFound, "deal %s not found", id)
	}

	return md, nil
}

// filter возвращает копии сделок в порядке создания.
func (r *MemoryRepository) filter(pred func(entity.Deal) bool) []entity.Deal {
	r.mu.RLock()
	records := make([]*memoryDeal, 0, len(r.order))
	for _, id := range r.order {
		records = append(records, r.deals[id])
	}
	r.mu.RUnlock()

	var out []entity.Deal
	for _, md := range records {
		md.mu.Lock()
		d := cloneDeal(md.deal)
		md.mu.Unlock()

		if pred(d) {
			out = append(out, d)
		}
	}

	return out
}

func (r *MemoryRepository) tradesOf(dealID string) []entity.Trade {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.Trade
	for _, t := range r.trades {
		if t.DealID == dealID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b entity.Trade) int { return a.CreatedAt.Compare(b.CreatedAt) })

	return out
}

func cloneDeal(d entity.Deal) entity.Deal {
	d.Items = slices.Clone(d.Items)
	d.Trades = slices.Clone(d.Trades)
	return d
}

func limitDeals(deals []entity.Deal, limit int) []entity.Deal {
	if limit > 0 && len(deals) > limit {
		return deals[:limit]
	}
	return deals
}
