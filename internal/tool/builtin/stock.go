// Package builtin provides the default tools registered with every server:
// a clock and a stock quote lookup for the market widgets on the canvas.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/easel-ai/easel/internal/tool"
)

const stockQuoteDescription = `Looks up the latest quote for a stock ticker symbol.

Usage notes:
  - The symbol is a plain ticker like AAPL or MSFT (case-insensitive)
  - Returns the current price, day change, open/high/low, and volume
  - Quotes can be delayed; do not present them as real-time trading data`

const (
	defaultQuoteBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	quoteTimeout        = 15 * time.Second
	maxQuoteBody        = 1 << 20
)

// StockQuoteTool fetches a quote from the Yahoo Finance chart endpoint.
type StockQuoteTool struct {
	baseURL string
	client  *http.Client
}

// StockQuoteInput represents the input for the stock_quote tool.
type StockQuoteInput struct {
	Symbol string `json:"symbol"`
}

// Quote is the tool's structured output, also serialized into the result
// text.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previousClose"`
	Volume        int64   `json:"volume"`
	MarketState   string  `json:"marketState"`
	Timestamp     string  `json:"timestamp"`
}

// NewStockQuoteTool creates a stock quote tool. An empty baseURL uses the
// public Yahoo Finance endpoint.
func NewStockQuoteTool(baseURL string) *StockQuoteTool {
	if baseURL == "" {
		baseURL = defaultQuoteBaseURL
	}
	return &StockQuoteTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: quoteTimeout},
	}
}

func (t *StockQuoteTool) Name() string        { return "stock_quote" }
func (t *StockQuoteTool) Description() string { return stockQuoteDescription }

func (t *StockQuoteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {
				"type": "string",
				"description": "The ticker symbol to look up, e.g. AAPL"
			}
		},
		"required": ["symbol"]
	}`)
}

// chartResponse mirrors the subset of the Yahoo chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				RegularMarketOpen    float64 `json:"regularMarketOpen"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  int64   `json:"regularMarketVolume"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				MarketState          string  `json:"marketState"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

func (t *StockQuoteTool) Execute(ctx context.Context, input json.RawMessage) (*tool.Result, error) {
	var params StockQuoteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	url := fmt.Sprintf("%s/%s?interval=1m&range=1d", t.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request for %s returned status %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}

	meta := chart.Chart.Result[0].Meta
	change := meta.RegularMarketPrice - meta.ChartPreviousClose
	changePercent := 0.0
	if meta.ChartPreviousClose != 0 {
		changePercent = change / meta.ChartPreviousClose * 100
	}

	quote := Quote{
		Symbol:        symbol,
		Price:         meta.RegularMarketPrice,
		Change:        change,
		ChangePercent: changePercent,
		Open:          meta.RegularMarketOpen,
		High:          meta.RegularMarketDayHigh,
		Low:           meta.RegularMarketDayLow,
		PreviousClose: meta.ChartPreviousClose,
		Volume:        meta.RegularMarketVolume,
		MarketState:   meta.MarketState,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	out, err := json.MarshalIndent(quote, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode quote: %w", err)
	}

	return &tool.Result{
		Output: string(out),
		Metadata: map[string]any{
			"symbol": symbol,
			"price":  quote.Price,
		},
	}, nil
}
