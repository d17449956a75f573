package pricefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenWatch/internal/model"
)

const (
	DefaultBaseURL = "https://deep-index.moralis.io/api/v2.2"
	DefaultChain   = "eth"
)

// maxResponseBytes caps how much of a price response is read.
var maxResponseBytes int64 = 4 << 20

// Config holds Moralis API settings.
type Config struct {
	BaseURL string
	APIKey  string
	Chain   string
	Timeout time.Duration
}

// MoralisClient fetches current USD prices for many ERC20 tokens in one call.
type MoralisClient struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

type tokenRef struct {
	TokenAddress string `json:"token_address"`
}

type pricesRequest struct {
	Tokens []tokenRef `json:"tokens"`
}

type tokenPrice struct {
	TokenAddress      string      `json:"tokenAddress"`
	UsdPrice          json.Number `json:"usdPrice"`
	UsdPriceFormatted string      `json:"usdPriceFormatted"`
}

func NewMoralisClient(cfg Config, logger *zap.Logger) (*MoralisClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("moralis api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Chain == "" {
		cfg.Chain = DefaultChain
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MoralisClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// FetchPrices returns one price per token the provider knows about. Prices
// are kept as the decimal strings the provider formats.
func (c *MoralisClient) FetchPrices(ctx context.Context, addresses []string) ([]model.FetchedPrice, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	reqBody := pricesRequest{Tokens: make([]tokenRef, 0, len(addresses))}
	for _, addr := range addresses {
		reqBody.Tokens = append(reqBody.Tokens, tokenRef{TokenAddress: addr})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/erc20/prices?chain=" + url.QueryEscape(c.cfg.Chain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moralis returned status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var items []tokenPrice
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]model.FetchedPrice, 0, len(items))
	for _, item := range items {
		price := priceString(item)
		if item.TokenAddress == "" || price == "" {
			c.logger.Debug("skip incomplete price entry", zap.String("address", item.TokenAddress))
			continue
		}
		out = append(out, model.FetchedPrice{Address: item.TokenAddress, Price: price})
	}
	return out, nil
}

func priceString(item tokenPrice) string {
	if p := strings.TrimSpace(item.UsdPriceFormatted); p != "" {
		return p
	}
	if item.UsdPrice == "" {
		return ""
	}
	d, err := decimal.NewFromString(item.UsdPrice.String())
	if err != nil {
		return ""
	}
	return d.String()
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
