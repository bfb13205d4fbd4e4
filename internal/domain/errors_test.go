package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"cyberlombard/internal/domain"
	"cyberlombard/pkg/errcodes"
)

func TestAppErrorCodes(t *testing.T) {
	rq := require.New(t)

	cause := errors.New("connection reset")
	err := fmt.Errorf("payout: %w", domain.WrapError(cause, errcodes.UpstreamUnavailable, "payout gateway failed"))

	rq.True(domain.IsAppError(err))
	rq.True(domain.IsCode(err, errcodes.UpstreamUnavailable))
	rq.False(domain.IsCode(err, errcodes.InvalidTransition))
	rq.ErrorIs(err, cause)
	rq.Equal("payout gateway failed", domain.Message(err))
	rq.EqualError(err, "payout: payout gateway failed: connection reset")

	code, ok := domain.GetCode(errors.New("plain"))
	rq.False(ok)
	rq.Empty(code)

	rq.EqualError(domain.NewErrorf(errcodes.InvalidTerm, "term %d out of [%d, %d]", 3, 7, 30), "term 3 out of [7, 30]")
}
