package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"dex_gateway/internal/client"
	"dex_gateway/internal/config"
	"dex_gateway/internal/domain/entity"
	"dex_gateway/internal/metrics"
	"dex_gateway/internal/port"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Symbols priced from the fixed table when the config does not override it.
// FAIR has no feed yet and is pinned until one exists.
var defaultFixedPricesUSD = map[string]float64{
	"USDC": 1.0,
	"USDT": 1.0,
	"FAIR": 5.0,
}

// priceServiceImpl implements the port.PriceService interface on top of the
// Pyth Hermes client, with a short-lived cache so caller-driven polling does
// not hammer the feed.
type priceServiceImpl struct {
	logger     *zap.Logger
	pythClient client.PythClient
	feedIDs    map[string]string
	fixedUSD   map[string]float64
	cache      *cache.Cache
	limiter    *rate.Limiter
}

// NewPriceService creates a new instance of PriceService.
func NewPriceService(logger *zap.Logger, cfg *config.Config, pythClient client.PythClient) port.PriceService {
	fixed := make(map[string]float64, len(defaultFixedPricesUSD))
	for symbol, usd := range defaultFixedPricesUSD {
		fixed[symbol] = usd
	}
	for symbol, usd := range cfg.Pyth.FixedPricesUSD {
		fixed[strings.ToUpper(symbol)] = usd
	}

	feedIDs := make(map[string]string, len(cfg.Pyth.FeedIDs))
	for symbol, id := range cfg.Pyth.FeedIDs {
		feedIDs[strings.ToUpper(symbol)] = id
	}

	ttl := time.Duration(cfg.PriceSvc.CacheTTLSeconds) * time.Second
	return &priceServiceImpl{
		logger:     logger.Named("PriceService"),
		pythClient: pythClient,
		feedIDs:    feedIDs,
		fixedUSD:   fixed,
		cache:      cache.New(ttl, 2*ttl),
		limiter:    rate.NewLimiter(rate.Limit(cfg.PriceSvc.RatePerSecond), cfg.PriceSvc.RateBurst),
	}
}

// HasPriceSupport reports whether the symbol resolves through the fixed
// table or a configured feed id.
func (s *priceServiceImpl) HasPriceSupport(symbol string) bool {
	key := strings.ToUpper(symbol)
	if _, ok := s.fixedUSD[key]; ok {
		return true
	}
	_, ok := s.feedIDs[key]
	return ok
}

// FetchPrice resolves the USD price for a symbol. Fixed-table symbols
// short-circuit; others go through the price feed. A missing feed id yields
// an unsupported result and a feed failure yields an unavailable one --
// callers must render both as "price unknown", never as zero.
func (s *priceServiceImpl) FetchPrice(ctx context.Context, symbol string) entity.TokenPrice {
	key := strings.ToUpper(symbol)

	if usd, ok := s.fixedUSD[key]; ok {
		return entity.TokenPrice{
			Symbol:    key,
			USD:       usd,
			Timestamp: time.Now().Unix(),
			Source:    entity.PriceSourceFixed,
			Status:    entity.PriceOK,
		}
	}

	feedID, ok := s.feedIDs[key]
	if !ok {
		s.logger.Debug("No price feed configured for symbol", zap.String("symbol", key))
		return entity.TokenPrice{Symbol: key, Source: entity.PriceSourceFeed, Status: entity.PriceUnsupported}
	}

	if cached, found := s.cache.Get(key); found {
		return cached.(entity.TokenPrice)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return entity.TokenPrice{Symbol: key, Source: entity.PriceSourceFeed, Status: entity.PriceUnavailable}
	}

	feed, err := s.pythClient.GetLatestPriceFeed(ctx, feedID)
	if err != nil {
		metrics.PriceFetchFailures.WithLabelValues(key).Inc()
		s.logger.Warn("Price feed fetch failed", zap.String("symbol", key), zap.Error(err))
		return entity.TokenPrice{
			Symbol:    key,
			Timestamp: time.Now().Unix(),
			Source:    entity.PriceSourceFeed,
			Status:    entity.PriceUnavailable,
		}
	}

	usd, err := client.ConvertPythPrice(feed.Price.Price, feed.Price.Expo)
	if err != nil {
		metrics.PriceFetchFailures.WithLabelValues(key).Inc()
		s.logger.Warn("Price feed returned unparseable price", zap.String("symbol", key), zap.Error(err))
		return entity.TokenPrice{
			Symbol:    key,
			Timestamp: time.Now().Unix(),
			Source:    entity.PriceSourceFeed,
			Status:    entity.PriceUnavailable,
		}
	}

	price := entity.TokenPrice{
		Symbol:    key,
		USD:       usd,
		Timestamp: feed.Price.PublishTime,
		Source:    entity.PriceSourceFeed,
		Status:    entity.PriceOK,
	}
	s.cache.Set(key, price, cache.DefaultExpiration)
	return price
}

// CalculateUSDValue multiplies a display-unit amount by the price. It
// returns 0 for non-positive or unparseable amounts and for prices that are
// not usable.
func (s *priceServiceImpl) CalculateUSDValue(amount string, price entity.TokenPrice) float64 {
	if !price.Usable() {
		return 0
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil || value <= 0 {
		return 0
	}
	return value * price.USD
}

// StartPolling refreshes the configured feed symbols on a fixed interval
// until ctx is done. Refresh stays caller-driven polling, not push-based.
func StartPolling(ctx context.Context, svc port.PriceService, logger *zap.Logger, symbols []string, interval time.Duration) {
	log := logger.Named("PricePoller")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Price polling stopped")
			return
		case <-ticker.C:
			for _, symbol := range symbols {
				p := svc.FetchPrice(ctx, symbol)
				if p.Status != entity.PriceOK {
					log.Debug("Price refresh returned no data", zap.String("symbol", symbol), zap.String("status", string(p.Status)))
				}
			}
		}
	}
}
