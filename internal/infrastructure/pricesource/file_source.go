package pricesource

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
)

// FileSource читает таблицу цен в том же формате, что и HTTP источник.
// Используется в dev окружении без доступа к площадке.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}

	var body bulkPricesResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	prices, skipped := body.prices(decimal.NewFromInt(1))
	logger(ctx).Info("price table loaded from file", slog.String("path", s.path), slog.Int("items", len(prices)), slog.Int("skipped", skipped))

	return prices, nil
}
