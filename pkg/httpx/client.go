package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// ClientConfig описывает исходящий HTTP клиент к внешнему сервису.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewRestyClient возвращает resty клиент, который логирует каждый запрос
// через LoggingRoundTripper.
func NewRestyClient(cfg ClientConfig, opts ...Option) *resty.Client {
	return NewRestyClientWithTransport(cfg, http.DefaultTransport, opts...)
}

func NewRestyClientWithTransport(cfg ClientConfig, next http.RoundTripper, opts ...Option) *resty.Client {
	return resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetTransport(NewLoggingRoundTripper(next, opts...)).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Accept", "application/json")
}

// StatusError неуспешный HTTP ответ внешнего сервиса.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary ответ, после которого имеет смысл повторить запрос.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// CheckResponse превращает ответ resty в ошибку. Ошибки 4xx помечаются
// постоянными и не повторяются.
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}

	if resp.IsSuccess() {
		return nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 512)} //nolint:mnd
	if statusErr.Temporary() {
		return statusErr
	}

	return Permanent(statusErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
