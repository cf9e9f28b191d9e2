package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockDefaultsToUTC(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	clock := &ClockTool{now: func() time.Time { return fixed }}

	res, err := clock.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "Saturday, 14 March 2026 09:26:53 UTC", res.Output)
}

func TestClockTimezone(t *testing.T) {
	clock := NewClockTool()

	res, err := clock.Execute(context.Background(), json.RawMessage(`{"timezone":"America/New_York"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Output)

	_, err = clock.Execute(context.Background(), json.RawMessage(`{"timezone":"Nowhere/Special"}`))
	assert.Error(t, err)
}

const chartPayload = `{
	"chart": {
		"result": [{
			"meta": {
				"regularMarketPrice": 105.5,
				"regularMarketOpen": 101.0,
				"regularMarketDayHigh": 106.0,
				"regularMarketDayLow": 100.5,
				"regularMarketVolume": 123456,
				"chartPreviousClose": 100.0,
				"marketState": "REGULAR"
			}
		}]
	}
}`

func TestStockQuote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/AAPL", r.URL.Path)
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartPayload))
	}))
	defer ts.Close()

	quote := NewStockQuoteTool(ts.URL)
	res, err := quote.Execute(context.Background(), json.RawMessage(`{"symbol":"aapl"}`))
	require.NoError(t, err)

	var q Quote
	require.NoError(t, json.Unmarshal([]byte(res.Output), &q))
	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 105.5, q.Price, 1e-9)
	assert.InDelta(t, 5.5, q.Change, 1e-9)
	assert.InDelta(t, 5.5, q.ChangePercent, 1e-9)
	assert.Equal(t, int64(123456), q.Volume)
	assert.Equal(t, "REGULAR", q.MarketState)
	assert.Equal(t, "AAPL", res.Metadata["symbol"])
}

func TestStockQuoteErrors(t *testing.T) {
	quote := NewStockQuoteTool("")

	_, err := quote.Execute(context.Background(), json.RawMessage(`{"symbol":"  "}`))
	assert.Error(t, err)

	_, err = quote.Execute(context.Background(), json.RawMessage(`{broken`))
	assert.Error(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer ts.Close()

	quote = NewStockQuoteTool(ts.URL)
	_, err = quote.Execute(context.Background(), json.RawMessage(`{"symbol":"ZZZZ"}`))
	assert.ErrorContains(t, err, "status 404")

	ts2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[]}}`))
	}))
	defer ts2.Close()

	quote = NewStockQuoteTool(ts2.URL)
	_, err = quote.Execute(context.Background(), json.RawMessage(`{"symbol":"EMPTY"}`))
	assert.ErrorContains(t, err, "no quote data")
}
