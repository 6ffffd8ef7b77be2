package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/rs/zerolog/log"
)

// Chain tries each provider in order and returns the first quote found.
// ErrDataUnavailable is only surfaced once every source has been exhausted;
// any other error from a source is logged and the next source is tried.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Quote(ctx context.Context, ticker string, date time.Time) (types.MarketQuote, error) {
	logger := log.With().
		Str("component", "quote_chain").
		Str("ticker", ticker).
		Str("date", date.Format(types.DateLayout)).
		Logger()

	for i, p := range c.providers {
		quote, err := p.Quote(ctx, ticker, date)
		if err == nil {
			return quote, nil
		}
		if !errors.Is(err, ErrDataUnavailable) {
			logger.Warn().Err(err).Int("source", i).Msg("quote source failed, trying next")
		}
	}

	logger.Debug().Msg("no source returned data")
	return types.MarketQuote{}, ErrDataUnavailable
}
