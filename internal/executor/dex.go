package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/domain"
)

// DexConfig holds the production router endpoint settings
type DexConfig struct {
	Endpoint       string
	RequestTimeout time.Duration
}

// DexRouter executes swaps against an HTTP DEX router API. One call, one
// attempt: the worker owns retries and the per-attempt deadline arrives via
// ctx.
type DexRouter struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDexRouter creates the production execution backend
func NewDexRouter(cfg *DexConfig, logger *slog.Logger) *DexRouter {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &DexRouter{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type swapRequest struct {
	OrderID  string  `json:"orderId"`
	UserID   string  `json:"userId"`
	Type     string  `json:"type"`
	TokenIn  string  `json:"tokenIn"`
	TokenOut string  `json:"tokenOut"`
	AmountIn float64 `json:"amountIn"`
}

type swapResponse struct {
	TxHash    string  `json:"txHash"`
	AmountOut float64 `json:"amountOut"`
	Error     string  `json:"error"`
}

func (d *DexRouter) Execute(ctx context.Context, order *domain.Order) (*domain.ExecutionResult, error) {
	body, err := json.Marshal(swapRequest{
		OrderID:  order.ID,
		UserID:   order.UserID,
		Type:     order.Type,
		TokenIn:  order.TokenIn,
		TokenOut: order.TokenOut,
		AmountIn: order.AmountIn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap request: %w", err)
	}

	url := d.endpoint + "/swap"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	d.logger.Debug("Submitting swap to DEX router",
		slog.String("order_id", order.ID),
		slog.String("url", url),
	)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read swap response: %w", err)
	}

	var swap swapResponse
	if err := json.Unmarshal(respBody, &swap); err != nil {
		return nil, fmt.Errorf("failed to parse swap response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if swap.Error != "" {
			return nil, fmt.Errorf("dex router rejected swap: %s", swap.Error)
		}
		return nil, fmt.Errorf("dex router returned status %d", resp.StatusCode)
	}

	if swap.TxHash == "" {
		return nil, fmt.Errorf("dex router returned no transaction hash")
	}

	return &domain.ExecutionResult{
		TxHash:    swap.TxHash,
		AmountOut: swap.AmountOut,
	}, nil
}
