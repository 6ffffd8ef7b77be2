package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/ledgersim/ledgersim-api/internal/types"
	"gorm.io/gorm"
)

// StoredQuote is one day of OHLCV data for one ticker held locally. The
// simulation binary seeds this table; the store can also act as a cache in
// front of a remote source.
type StoredQuote struct {
	gorm.Model `json:"-"`
	Ticker     string  `gorm:"index:idx_quote_day,unique" json:"ticker"`
	Date       string  `gorm:"index:idx_quote_day,unique" json:"date"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     int64   `json:"volume"`
}

// Store serves quotes from the local quote table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Quote returns the stored quote for the ticker and date, or
// ErrDataUnavailable if none exists.
func (s *Store) Quote(_ context.Context, ticker string, date time.Time) (types.MarketQuote, error) {
	var row StoredQuote
	err := s.db.Where("ticker = ? AND date = ?", ticker, date.Format(types.DateLayout)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.MarketQuote{}, ErrDataUnavailable
		}
		return types.MarketQuote{}, err
	}

	return types.MarketQuote{
		Ticker: row.Ticker,
		Open:   row.Open,
		High:   row.High,
		Low:    row.Low,
		Close:  row.Close,
		Volume: row.Volume,
	}, nil
}

// Put inserts or replaces the quote for one ticker-date.
func (s *Store) Put(ticker string, date time.Time, quote types.MarketQuote) error {
	day := date.Format(types.DateLayout)
	if err := s.db.Unscoped().
		Where("ticker = ? AND date = ?", ticker, day).
		Delete(&StoredQuote{}).Error; err != nil {
		return err
	}
	return s.db.Create(&StoredQuote{
		Ticker: ticker,
		Date:   day,
		Open:   quote.Open,
		High:   quote.High,
		Low:    quote.Low,
		Close:  quote.Close,
		Volume: quote.Volume,
	}).Error
}
