package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/rs/zerolog/log"
)

const stooqBaseURL = "https://stooq.com/q/d/l/"

// StooqClient downloads daily bars from the stooq.com CSV endpoint. US
// tickers are suffixed with ".us" on the wire.
type StooqClient struct {
	baseURL string
	client  *http.Client
}

func NewStooqClient() *StooqClient {
	return &StooqClient{
		baseURL: stooqBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Quote fetches the bar for one ticker-date. An empty download (closed
// market, unknown symbol) maps to ErrDataUnavailable.
func (c *StooqClient) Quote(ctx context.Context, ticker string, date time.Time) (types.MarketQuote, error) {
	logger := log.With().
		Str("source", "stooq").
		Str("ticker", ticker).
		Str("date", date.Format(types.DateLayout)).
		Logger()

	day := date.Format("20060102")
	symbol := strings.ToLower(strings.ReplaceAll(ticker, ".", "-")) + ".us"

	q := url.Values{}
	q.Set("s", symbol)
	q.Set("d1", day)
	q.Set("d2", day)
	q.Set("i", "d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return types.MarketQuote{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.MarketQuote{}, fmt.Errorf("stooq request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.MarketQuote{}, fmt.Errorf("stooq returned status %d", resp.StatusCode)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return types.MarketQuote{}, fmt.Errorf("stooq response not parseable: %w", err)
	}

	// Header plus at least one data row, otherwise the date has no bar.
	if len(records) < 2 || len(records[1]) < 6 {
		logger.Debug().Msg("no bar returned for date")
		return types.MarketQuote{}, ErrDataUnavailable
	}

	row := records[1]
	quote := types.MarketQuote{Ticker: ticker}
	fields := []struct {
		dst *float64
		idx int
	}{
		{&quote.Open, 1},
		{&quote.High, 2},
		{&quote.Low, 3},
		{&quote.Close, 4},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(row[f.idx], 64)
		if err != nil {
			return types.MarketQuote{}, fmt.Errorf("stooq bar field %d invalid: %w", f.idx, err)
		}
		*f.dst = v
	}
	if vol, err := strconv.ParseFloat(row[5], 64); err == nil {
		quote.Volume = int64(vol)
	}

	logger.Debug().Float64("close", quote.Close).Msg("fetched bar")
	return quote, nil
}
