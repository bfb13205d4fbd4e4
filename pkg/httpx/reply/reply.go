package reply

import (
	"context"
	"errors"
	"net/http"

	"git.appkode.ru/pub/go/failure"
	jsoniter "github.com/json-iterator/go"

	"cyberlombard/pkg/contextx"
	"cyberlombard/pkg/errcodes"
	"cyberlombard/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	SupportID string `json:"supportId"`
}

func (e *errorResponse) WithDefaultCode(code failure.ErrorCode) {
	if e.Code == "" {
		e.Code = code.String()
	}
}

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

func OK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

func Created(w http.ResponseWriter) {
	w.WriteHeader(http.StatusCreated)
}

func JSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger(ctx).Error("json.Encode", logx.Error(err))
	}
}

// codedError ошибка с кодом предметной области.
type codedError interface {
	error
	ErrorCode() failure.ErrorCode
	Description() string
}

// statusByCode HTTP статусы для кодов предметной области.
var statusByCode = map[failure.ErrorCode]int{ //nolint:gochecknoglobals
	errcodes.ValidationError:     http.StatusBadRequest,
	errcodes.InvalidDealID:       http.StatusBadRequest,
	errcodes.InvalidOwnerID:      http.StatusBadRequest,
	errcodes.InvalidTerm:         http.StatusBadRequest,
	errcodes.NoAcceptableItems:   http.StatusBadRequest,
	errcodes.Forbidden:           http.StatusForbidden,
	errcodes.OwnerNotVerified:    http.StatusForbidden,
	errcodes.KYCRequired:         http.StatusForbidden,
	errcodes.NotFound:            http.StatusNotFound,
	errcodes.DealNotFound:        http.StatusNotFound,
	errcodes.TradeNotFound:       http.StatusNotFound,
	errcodes.QuoteMismatch:       http.StatusConflict,
	errcodes.InvalidTransition:   http.StatusConflict,
	errcodes.UpstreamUnavailable: http.StatusBadGateway,
	errcodes.TimeoutExceeded:     http.StatusGatewayTimeout,
}

func Error(ctx context.Context, w http.ResponseWriter, err error) {
	var coded codedError
	if errors.As(err, &coded) {
		status, ok := statusByCode[coded.ErrorCode()]
		if !ok {
			status = http.StatusInternalServerError
		}

		if status >= http.StatusInternalServerError {
			logger(ctx).Error("error", logx.Error(err))
		} else {
			logger(ctx).Warn("request rejected", logx.Error(err))
		}

		JSON(ctx, w, status, errorResponse{
			Code:      coded.ErrorCode().String(),
			Message:   coded.Description(),
			SupportID: supportID(ctx),
		})

		return
	}

	logger(ctx).Error("error", logx.Error(err))

	response := errorResponse{
		Code:      failure.Code(err).String(),
		Message:   failure.Description(err),
		SupportID: supportID(ctx),
	}

	switch {
	case failure.IsInvalidArgumentError(err):
		response.WithDefaultCode(errcodes.ValidationError)
		JSON(ctx, w, http.StatusBadRequest, response)
	case failure.IsNotFoundError(err):
		response.WithDefaultCode(errcodes.NotFound)
		JSON(ctx, w, http.StatusNotFound, response)
	case failure.IsUnauthorizedError(err):
		JSON(ctx, w, http.StatusUnauthorized, response)
	case failure.IsForbiddenError(err):
		response.WithDefaultCode(errcodes.Forbidden)
		JSON(ctx, w, http.StatusForbidden, response)
	case failure.IsConflictError(err):
		JSON(ctx, w, http.StatusConflict, response)
	case failure.IsUnprocessableEntityError(err):
		JSON(ctx, w, http.StatusUnprocessableEntity, response)
	default:
		response.WithDefaultCode(errcodes.InternalServerError)
		JSON(ctx, w, http.StatusInternalServerError, response)
	}
}

func supportID(ctx context.Context) string {
	traceID, err := contextx.TraceIDFromContext(ctx)
	if err != nil {
		return "unsupported"
	}

	return traceID.String()
}
