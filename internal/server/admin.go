package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/service/deal"
	"cyberlombard/pkg/httpx/reply"
	"cyberlombard/pkg/httpx/req"
	"cyberlombard/pkg/rest"
)

type adminService interface {
	Sweep(ctx context.Context, now time.Time) (deal.SweepResult, error)
	CancelStale(ctx context.Context, now time.Time) (int, error)
	RetryPayout(ctx context.Context, id string) (entity.Deal, error)
	RetryReturn(ctx context.Context, id string) (entity.Trade, error)
}

type AdminServer struct {
	adminService adminService
	clock        clock.Clock
}

func NewAdminServer(adminService adminService, clk clock.Clock) AdminServer {
	return AdminServer{
		adminService: adminService,
		clock:        clk,
	}
}

func (s AdminServer) postV1AdminSweep(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.SweepRequest

	if r.ContentLength != 0 {
		if err := req.Read(r, &request); err != nil {
			return fmt.Errorf("req.Read: %w", err)
		}
	}

	now := s.clock.Now()
	if request.Now != nil {
		now = *request.Now
	}

	result, err := s.adminService.Sweep(ctx, now)
	if err != nil {
		return fmt.Errorf("adminService.Sweep: %w", err)
	}

	cancelled, err := s.adminService.CancelStale(ctx, now)
	if err != nil {
		return fmt.Errorf("adminService.CancelStale: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, rest.SweepResult{
		Defaulted:  result.Defaulted,
		BoughtBack: result.BoughtBack,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		Cancelled:  cancelled,
	})

	return nil
}

func (s AdminServer) postV1AdminPayout(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	d, err := s.adminService.RetryPayout(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("adminService.RetryPayout: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(d))

	return nil
}

func (s AdminServer) postV1AdminReturn(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	trade, err := s.adminService.RetryReturn(ctx, r.PathValue("id"))
	if err != nil {
		return fmt.Errorf("adminService.RetryReturn: %w", err)
	}

	reply.JSON(ctx, w, http.StatusAccepted, newRESTTrade(trade))

	return nil
}
