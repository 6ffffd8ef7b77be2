package marketdata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&StoredQuote{}))
	return NewStore(db)
}

func TestStorePutAndQuote(t *testing.T) {
	store := openTestStore(t)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put("AAPL", day, types.MarketQuote{
		Ticker: "AAPL", Open: 49, High: 51, Low: 48, Close: 50, Volume: 1_000_000,
	}))

	quote, err := store.Quote(context.Background(), "AAPL", day)
	require.NoError(t, err)
	assert.Equal(t, 49.0, quote.Open)
	assert.Equal(t, 50.0, quote.Close)
	assert.Equal(t, int64(1_000_000), quote.Volume)
}

func TestStorePutReplaces(t *testing.T) {
	store := openTestStore(t)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put("AAPL", day, types.MarketQuote{Open: 49, Close: 50}))
	require.NoError(t, store.Put("AAPL", day, types.MarketQuote{Open: 60, Close: 61}))

	quote, err := store.Quote(context.Background(), "AAPL", day)
	require.NoError(t, err)
	assert.Equal(t, 60.0, quote.Open)
}

func TestStoreMissingQuote(t *testing.T) {
	store := openTestStore(t)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put("AAPL", day, types.MarketQuote{Open: 49}))

	_, err := store.Quote(context.Background(), "AAPL", day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = store.Quote(context.Background(), "MSFT", day)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}
