package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteURL = `=~^https://www\.alphavantage\.co/query`

func TestLookupParsesQuote(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", quoteURL,
		httpmock.NewStringResponder(200, `{"Global Quote": {"01. symbol": "AAPL", "05. price": "189.5000"}}`))

	quoter := NewAlphaVantage("demo", nil, time.Minute)
	quote, err := quoter.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("189.50")))
}

func TestLookupUnknownSymbol(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	// Alpha Vantage answers an empty quote object for unlisted symbols.
	httpmock.RegisterResponder("GET", quoteURL,
		httpmock.NewStringResponder(200, `{"Global Quote": {}}`))

	quoter := NewAlphaVantage("demo", nil, time.Minute)
	_, err := quoter.Lookup(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestLookupTransportFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", quoteURL,
		httpmock.NewErrorResponder(errors.New("connection refused")))

	quoter := NewAlphaVantage("demo", nil, time.Minute)
	_, err := quoter.Lookup(context.Background(), "AAPL")
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestLookupNonOKStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", quoteURL,
		httpmock.NewStringResponder(503, "rate limited"))

	quoter := NewAlphaVantage("demo", nil, time.Minute)
	_, err := quoter.Lookup(context.Background(), "AAPL")
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestLookupMalformedPrice(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", quoteURL,
		httpmock.NewStringResponder(200, `{"Global Quote": {"05. price": "not-a-number"}}`))

	quoter := NewAlphaVantage("demo", nil, time.Minute)
	_, err := quoter.Lookup(context.Background(), "AAPL")
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}
