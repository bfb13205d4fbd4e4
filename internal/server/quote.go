package server

import (
	"context"
	"fmt"
	"net/http"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/httpx/reply"
	"cyberlombard/pkg/httpx/req"
	"cyberlombard/pkg/rest"
)

type quoteService interface {
	Quote(ctx context.Context, items value.Items, termDays int) (entity.Quote, error)
}

type QuoteServer struct {
	quoteService quoteService
}

func NewQuoteServer(quoteService quoteService) QuoteServer {
	return QuoteServer{
		quoteService: quoteService,
	}
}

func (s QuoteServer) postV1Quotes(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.QuoteRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	q, err := s.quoteService.Quote(ctx, newDomainItems(request.Items), request.TermDays)
	if err != nil {
		return fmt.Errorf("quoteService.Quote: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTQuote(q))

	return nil
}
