// Copyright (c) Microsoft. All rights reserved.

// Package finance provides market-data tools backed by fixed quote tables.
//
// The tables are static so that agent runs are reproducible. Unknown tickers,
// pairs and markets are answered with a normal result listing what is
// available, which lets the model correct itself on the next round.
package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	al "github.com/microsoft/agentloop/agentloop"
)

// Tool names.
const (
	StockPriceTool    = "get_stock_price"
	ExchangeRateTool  = "get_exchange_rate"
	MarketSummaryTool = "get_market_summary"
)

// Quote is a price with its daily change in percent.
type Quote struct {
	Symbol   string
	Price    float64
	Change   float64
	Currency string
}

type quoteTable struct {
	order  []string
	quotes map[string]Quote
}

func newQuoteTable(qs ...Quote) quoteTable {
	t := quoteTable{quotes: make(map[string]Quote, len(qs))}
	for _, q := range qs {
		t.order = append(t.order, q.Symbol)
		t.quotes[q.Symbol] = q
	}
	return t
}

func (t quoteTable) lookup(symbol string) (Quote, bool) {
	q, ok := t.quotes[symbol]
	return q, ok
}

func (t quoteTable) keys() string { return strings.Join(t.order, ", ") }

var stocks = newQuoteTable(
	Quote{"PETR4", 38.72, 1.23, "BRL"},
	Quote{"VALE3", 61.45, -0.87, "BRL"},
	Quote{"ITUB4", 32.18, 0.45, "BRL"},
	Quote{"BBDC4", 13.95, -0.32, "BRL"},
	Quote{"WEGE3", 41.30, 2.15, "BRL"},
	Quote{"AAPL", 228.50, 1.85, "USD"},
	Quote{"MSFT", 445.20, 3.12, "USD"},
	Quote{"GOOGL", 178.90, -1.45, "USD"},
	Quote{"AMZN", 198.75, 2.30, "USD"},
	Quote{"NVDA", 142.60, 5.40, "USD"},
)

var rates = newQuoteTable(
	Quote{Symbol: "USD/BRL", Price: 5.12, Change: -0.35},
	Quote{Symbol: "EUR/BRL", Price: 5.58, Change: -0.18},
	Quote{Symbol: "GBP/BRL", Price: 6.48, Change: 0.12},
	Quote{Symbol: "BTC/USD", Price: 67842.50, Change: 2.45},
	Quote{Symbol: "ETH/USD", Price: 3456.80, Change: 1.87},
)

var (
	brazilLines = []string{
		"- Ibovespa: 131.245 pts (+0.82%)",
		"- Dolar (USD/BRL): R$ 5,12 (-0,35%)",
		"- Euro (EUR/BRL): R$ 5,58 (-0,18%)",
	}
	usLines = []string{
		"- S&P 500: 5.832 pts (+0.45%)",
		"- NASDAQ: 18.956 pts (+0.67%)",
		"- Dow Jones: 43.128 pts (+0.23%)",
	}
)

// StockPrice returns the formatted quote for ticker, e.g. "AAPL: USD 228.50 (+1.85%)".
func StockPrice(ticker string) string {
	ticker = normalize(ticker)
	q, ok := stocks.lookup(ticker)
	if !ok {
		return fmt.Sprintf("ticker '%s' not found. Available tickers: %s", ticker, stocks.keys())
	}
	return fmt.Sprintf("%s: %s %.2f (%+.2f%%)", q.Symbol, q.Currency, q.Price, q.Change)
}

// ExchangeRate returns the formatted rate for pair, e.g. "USD/BRL: 5.12 (-0.35%)".
func ExchangeRate(pair string) string {
	pair = strings.ReplaceAll(normalize(pair), " ", "")
	q, ok := rates.lookup(pair)
	if !ok {
		return fmt.Sprintf("pair '%s' not found. Available pairs: %s", pair, rates.keys())
	}
	return fmt.Sprintf("%s: %.2f (%+.2f%%)", q.Symbol, q.Price, q.Change)
}

// MarketSummary returns the index summary for market. An empty market or
// "global" yields every index.
func MarketSummary(market string) string {
	switch strings.ToLower(strings.TrimSpace(market)) {
	case "", "global":
		lines := []string{brazilLines[0]}
		lines = append(lines, usLines...)
		lines = append(lines, brazilLines[1:]...)
		return "Market summary:\n" + strings.Join(lines, "\n")
	case "brasil", "brazil", "br", "b3":
		return "Brazilian market:\n" + strings.Join(brazilLines, "\n")
	case "eua", "us", "usa":
		return "US market:\n" + strings.Join(usLines, "\n")
	default:
		return fmt.Sprintf("market '%s' not recognized. Use: brasil, us or global.", market)
	}
}

func normalize(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

type stockArgs struct {
	Ticker string `json:"ticker" jsonschema:"description=Stock ticker symbol (e.g. PETR4 or AAPL)"`
}

type rateArgs struct {
	Pair string `json:"pair" jsonschema:"description=Currency pair (e.g. USD/BRL or BTC/USD)"`
}

type marketArgs struct {
	Market string `json:"market,omitempty" jsonschema:"description=Market to summarize: brasil or us or global"`
}

// Tools returns the finance tools in declaration order.
func Tools() []al.Tool {
	return []al.Tool{
		al.NewTypedTool(StockPriceTool,
			"Get the current price of a stock by ticker.",
			func(_ context.Context, args stockArgs) (any, error) {
				return StockPrice(args.Ticker), nil
			},
		),
		al.NewTypedTool(ExchangeRateTool,
			"Get the exchange rate of a currency pair.",
			func(_ context.Context, args rateArgs) (any, error) {
				return ExchangeRate(args.Pair), nil
			},
		),
		al.NewTool(MarketSummaryTool,
			"Summarize the main market indices.",
			al.GenerateSchema[marketArgs](),
			func(_ context.Context, raw json.RawMessage) (any, error) {
				// market is optional; null and {} both mean global.
				return MarketSummary(gjson.GetBytes(raw, "market").String()), nil
			},
		),
	}
}

// Registry returns a registry holding [Tools].
func Registry() *al.Registry {
	return al.MustRegistry(Tools()...)
}
