package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"cyberlombard/internal/domain"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/httpx/reply"
)

func (s Server) RegisterRoutes(r chi.Router) { //nolint:funlen
	r.Route("/", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Post("/quotes", handler(s.postV1Quotes))

			r.Route("/deals", func(r chi.Router) {
				r.Post("/", handler(s.postV1Deals))
				r.Get("/{id}", handler(s.getV1Deal))
				r.Get("/{id}/history", handler(s.getV1DealHistory))
				r.Post("/{id}/cancel", handler(s.postV1DealCancel))
				r.Post("/{id}/transfer", handler(s.postV1DealTransfer))
				r.Post("/{id}/buyback", handler(s.postV1DealBuyback))
			})

			r.Get("/owners/{id}/deals", handler(s.getV1OwnerDeals))
			r.Get("/stats", handler(s.getV1Stats))

			// вызовы торгового агента и платёжного шлюза
			r.Route("/webhooks", func(r chi.Router) {
				r.Use(bearerOnly(s.tokens.Webhook))
				r.Post("/trades/{offerID}", handler(s.postV1TradeWebhook))
				r.Post("/payments", handler(s.postV1PaymentWebhook))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(bearerOnly(s.tokens.Admin))
				r.Post("/sweep", handler(s.postV1AdminSweep))
				r.Post("/deals/{id}/payout", handler(s.postV1AdminPayout))
				r.Post("/deals/{id}/return", handler(s.postV1AdminReturn))
			})
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			reply.Error(r.Context(), w, err)
		}
	}
}

func bearerOnly(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				reply.Error(r.Context(), w, domain.NewError(errcodes.Forbidden, "invalid bearer token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
