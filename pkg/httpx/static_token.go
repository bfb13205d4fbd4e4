package httpx

import (
	"context"
	"errors"
)

var errStaticTokenRejected = errors.New("static bearer token is empty or rejected")

// StaticToken токен, выданный заранее и не обновляемый.
type StaticToken string

func (t StaticToken) Authenticate(context.Context) error {
	return errStaticTokenRejected
}

func (t StaticToken) BearerToken() string {
	return string(t)
}
