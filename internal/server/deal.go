package server

import (
	"context"
	"fmt"
	"net/http"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/pkg/contextx"
	"cyberlombard/pkg/httpx/reply"
	"cyberlombard/pkg/httpx/req"
	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/rest"
)

type dealService interface {
	Create(ctx context.Context, request deal.CreateRequest) (entity.Deal, error)
	Get(ctx context.Context, id string) (entity.Deal, error)
	History(ctx context.Context, id string) ([]entity.StatusChange, error)
	ListByOwner(ctx context.Context, ownerID string) ([]entity.Deal, error)
	Stats(ctx context.Context) (entity.DealStats, error)
	Cancel(ctx context.Context, id string) (entity.Deal, error)
	RequestTransfer(ctx context.Context, id string) (entity.Trade, error)
	InitBuyback(ctx context.Context, id, returnURL string) (entity.Payment, error)
}

type DealServer struct {
	dealService dealService
}

func NewDealServer(dealService dealService) DealServer {
	return DealServer{
		dealService: dealService,
	}
}

func (s DealServer) postV1Deals(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.CreateDealRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	loan, err := parseAmount("loan_amount", request.LoanAmount)
	if err != nil {
		return err
	}

	buyback, err := parseAmount("buyback_amount", request.BuybackAmount)
	if err != nil {
		return err
	}

	ctx = withOwner(ctx, request.Owner.ID)

	d, err := s.dealService.Create(ctx, deal.CreateRequest{
		Items:         newDomainItems(request.Items),
		TermDays:      request.TermDays,
		LoanAmount:    loan,
		BuybackAmount: buyback,
		Owner:         newDomainOwner(request.Owner),
	})
	if err != nil {
		return fmt.Errorf("dealService.Create: %w", err)
	}

	reply.JSON(ctx, w, http.StatusCreated, newRESTDeal(d))

	return nil
}

func (s DealServer) getV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	d, err := s.dealService.Get(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("dealService.Get: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(d))

	return nil
}

func (s DealServer) getV1DealHistory(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	changes, err := s.dealService.History(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("dealService.History: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTHistory(changes))

	return nil
}

func (s DealServer) postV1DealCancel(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	d, err := s.dealService.Cancel(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("dealService.Cancel: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(d))

	return nil
}

func (s DealServer) postV1DealTransfer(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	trade, err := s.dealService.RequestTransfer(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("dealService.RequestTransfer: %w", err)
	}

	reply.JSON(ctx, w, http.StatusAccepted, newRESTTrade(trade))

	return nil
}

func (s DealServer) postV1DealBuyback(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.BuybackRequest

	if r.ContentLength != 0 {
		if err := req.Read(r, &request); err != nil {
			return fmt.Errorf("req.Read: %w", err)
		}
	}

	payment, err := s.dealService.InitBuyback(ctx, r.PathValue("id"), request.ReturnURL)
	if err != nil {
		return fmt.Errorf("dealService.InitBuyback: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTPayment(payment))

	return nil
}

func (s DealServer) getV1OwnerDeals(w http.ResponseWriter, r *http.Request) error {
	ctx := withOwner(r.Context(), r.PathValue("id"))

	deals, err := s.dealService.ListByOwner(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("dealService.ListByOwner: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeals(deals))

	return nil
}

func (s DealServer) getV1Stats(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	stats, err := s.dealService.Stats(ctx)
	if err != nil {
		return fmt.Errorf("dealService.Stats: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTStats(stats))

	return nil
}

// withOwner помечает запрос владельцем предметов, id попадает во все логи запроса.
func withOwner(ctx context.Context, ownerID string) context.Context {
	userID := contextx.UserID(ownerID)
	ctx = contextx.WithUserID(ctx, userID)

	return contextx.WithLogger(ctx, logger(ctx).With(logx.Stringer(logx.FieldOwnerID, userID)))
}
