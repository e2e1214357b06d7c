package client

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dex_gateway/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PythClient defines the interface for fetching price feeds from the Pyth
// Hermes API.
type PythClient interface {
	GetLatestPriceFeed(ctx context.Context, feedID string) (*entity.PythPriceFeed, error)
}

// pythClientImpl is the implementation of PythClient.
type pythClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewPythClient creates a new instance of pythClientImpl.
func NewPythClient(baseURL string, timeout time.Duration, logger *zap.Logger) PythClient {
	return &pythClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("PythClient"),
	}
}

// GetLatestPriceFeed implements the PythClient interface.
func (c *pythClientImpl) GetLatestPriceFeed(ctx context.Context, feedID string) (*entity.PythPriceFeed, error) {
	if feedID == "" {
		return nil, fmt.Errorf("feedID cannot be empty")
	}

	requestURL := fmt.Sprintf("%s/api/latest_price_feeds?ids[]=%s&verbose=true", c.baseURL, feedID)
	c.logger.Debug("Requesting price feed from Pyth Hermes", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute request to Pyth Hermes", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute request to Pyth Hermes (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	rawBody := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Pyth Hermes API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody),
		)
		return nil, fmt.Errorf("pyth API request to %s failed with status %d: %s", requestURL, resp.StatusCode(), string(rawBody))
	}

	var feeds []entity.PythPriceFeed
	if err := json.Unmarshal(rawBody, &feeds); err != nil {
		c.logger.Error("Failed to unmarshal Pyth Hermes response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to unmarshal pyth response from %s: %w", requestURL, err)
	}
	if len(feeds) == 0 {
		c.logger.Warn("Pyth Hermes returned 200 OK with no feeds", zap.String("feedID", feedID))
		return nil, fmt.Errorf("no price data returned for feed %s", feedID)
	}

	return &feeds[0], nil
}

// ConvertPythPrice converts a fixed-point Pyth price (price string plus
// exponent) into a float64 USD value.
func ConvertPythPrice(priceStr string, expo int32) (float64, error) {
	price, err := strconv.ParseInt(priceStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pyth price %q: %w", priceStr, err)
	}
	return float64(price) * math.Pow(10, float64(expo)), nil
}
