package trading_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/infrastructure/trading"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/httpx"
)

type agentStub struct {
	mu     sync.Mutex
	paths  []string
	bodies []string
	auth   []string
	status int
	body   string
}

func (a *agentStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	a.paths = append(a.paths, r.URL.Path)
	a.bodies = append(a.bodies, string(raw))
	a.auth = append(a.auth, r.Header.Get("Authorization"))
	status := a.status
	a.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(a.body))
}

func newClient(t *testing.T, stub *agentStub) *trading.Client {
	t.Helper()

	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	rc := httpx.NewRestyClientWithTransport(
		httpx.ClientConfig{BaseURL: srv.URL, Timeout: time.Second},
		httpx.NewAuthBearerRoundTripper(http.DefaultTransport, httpx.StaticToken("agent-token")),
	)
	retry := httpx.RetryPolicy{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	return trading.NewClient(rc, rate.NewLimiter(rate.Inf, 1), retry)
}

func TestClient_RequestIncoming(t *testing.T) {
	rq := require.New(t)

	stub := &agentStub{body: `{"trade_offer_id":"6012345678","trade_url":"https://steamcommunity.com/tradeoffer/6012345678","status":"SENT"}`}
	client := newClient(t, stub)

	offer, err := client.RequestIncoming(context.Background(), entity.TradeRequest{
		DealID:         "d1",
		PartnerSteamID: "76561198000000000",
		Items:          []string{"111", "222"},
	})
	rq.NoError(err)
	rq.Equal("6012345678", offer.OfferID)
	rq.Equal(entity.TradeStatusSent, offer.Status)

	rq.Equal([]string{"/api/trade/create"}, stub.paths)
	rq.Equal("Bearer agent-token", stub.auth[0])
	rq.JSONEq(`{"deal_id":"d1","partner_steam_id":"76561198000000000","items":[{"assetid":"111"},{"assetid":"222"}]}`, stub.bodies[0])
}

func TestClient_RequestReturn(t *testing.T) {
	rq := require.New(t)

	stub := &agentStub{body: `{"trade_offer_id":"6099","trade_url":"u"}`}
	client := newClient(t, stub)

	offer, err := client.RequestReturn(context.Background(), entity.TradeRequest{DealID: "d1", Items: []string{"111"}})
	rq.NoError(err)
	rq.Equal("6099", offer.OfferID)
	rq.Equal(entity.TradeStatusSent, offer.Status)
	rq.Equal([]string{"/api/trade/reverse"}, stub.paths)
}

func TestClient_Status(t *testing.T) {
	rq := require.New(t)

	stub := &agentStub{body: `{"status":"accepted"}`}
	client := newClient(t, stub)

	offer, err := client.Status(context.Background(), "6012345678")
	rq.NoError(err)
	rq.Equal("6012345678", offer.OfferID)
	rq.Equal(entity.TradeStatusAccepted, offer.Status)
	rq.Equal([]string{"/api/trade/status/6012345678"}, stub.paths)
}

func TestClient_Errors(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		body      string
		wantCalls int
	}{
		{name: "agent down", status: http.StatusServiceUnavailable, wantCalls: 2},
		{name: "bad request", status: http.StatusBadRequest, wantCalls: 1},
		{name: "no offer id", status: http.StatusOK, body: `{"status":"SENT"}`, wantCalls: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			stub := &agentStub{status: tc.status, body: tc.body}
			client := newClient(t, stub)

			_, err := client.RequestIncoming(context.Background(), entity.TradeRequest{DealID: "d1", Items: []string{"1"}})
			rq.Error(err)
			rq.True(domain.IsCode(err, errcodes.UpstreamUnavailable))
			rq.Len(stub.paths, tc.wantCalls)
		})
	}
}
