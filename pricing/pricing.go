package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownSymbol is returned when the quote provider has no listing
	// for the requested symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrGatewayUnavailable is returned when the quote provider cannot be
	// reached or answers with garbage.
	ErrGatewayUnavailable = errors.New("price gateway unavailable")
)

// Quote is the current market price for a symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Quoter looks up the current market price for a symbol. A failed lookup
// is terminal for the request that triggered it; no retries happen here.
type Quoter interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
}

type alphaVantageResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

// AlphaVantage fetches quotes from the Alpha Vantage GLOBAL_QUOTE endpoint
// and caches them in Redis. The cache client may be nil, in which case
// every lookup goes to the API.
type AlphaVantage struct {
	client   *http.Client
	cache    *redis.Client
	apiKey   string
	cacheTTL time.Duration
}

// NewAlphaVantage builds a quoter backed by the Alpha Vantage API.
func NewAlphaVantage(apiKey string, cache *redis.Client, cacheTTL time.Duration) *AlphaVantage {
	return &AlphaVantage{
		client:   http.DefaultClient,
		cache:    cache,
		apiKey:   apiKey,
		cacheTTL: cacheTTL,
	}
}

// Lookup resolves symbol to its current price, serving from the Redis
// cache when a fresh entry exists.
func (a *AlphaVantage) Lookup(ctx context.Context, symbol string) (Quote, error) {
	l := logrus.WithFields(logrus.Fields{
		"method":       "Lookup",
		"param_symbol": symbol,
	})

	if a.cache != nil {
		cached, err := a.cache.Get(ctx, cacheKey(symbol)).Result()
		if err == nil {
			price, perr := decimal.NewFromString(cached)
			if perr == nil {
				return Quote{Symbol: symbol, Price: price}, nil
			}
		}
	}

	url := fmt.Sprintf("https://www.alphavantage.co/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s", symbol, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		l.Errorf("quote request failed: %v", err)
		return Quote{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.Errorf("quote request returned status %d", resp.StatusCode)
		return Quote{}, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var result alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if result.GlobalQuote.Price == "" {
		return Quote{}, ErrUnknownSymbol
	}

	price, err := decimal.NewFromString(result.GlobalQuote.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: bad price %q", ErrGatewayUnavailable, result.GlobalQuote.Price)
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey(symbol), price.String(), a.cacheTTL).Err(); err != nil {
			l.Warnf("failed to cache price: %v", err)
		}
	}

	quoted := symbol
	if result.GlobalQuote.Symbol != "" {
		quoted = result.GlobalQuote.Symbol
	}
	return Quote{Symbol: quoted, Price: price}, nil
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("stock:%s:price", symbol)
}
