package execution

import (
	"testing"

	"github.com/ledgersim/ledgersim-api/internal/ledger"
	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func buyOrder(ticker string, shares float64, orderType string, limit *float64) types.Order {
	return types.Order{
		Action:        types.ActionBuy,
		Ticker:        ticker,
		Shares:        &shares,
		OrderType:     orderType,
		LimitPrice:    limit,
		StopLoss:      fptr(40),
		ExecutionDate: "2025-03-10",
	}
}

func sellOrder(ticker string, shares float64, orderType string, limit *float64) types.Order {
	return types.Order{
		Action:        types.ActionSell,
		Ticker:        ticker,
		Shares:        &shares,
		OrderType:     orderType,
		LimitPrice:    limit,
		ExecutionDate: "2025-03-10",
	}
}

func TestLimitBuyFillsAtOpenBelowLimit(t *testing.T) {
	book := ledger.NewBook(1000)
	quote := types.MarketQuote{Ticker: "AAPL", Open: 49, High: 51, Low: 48, Close: 50}

	out, err := Apply(buyOrder("AAPL", 10, types.OrderTypeLimit, fptr(50)), book, quote)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFilled, out.Status)
	assert.Equal(t, 49.0, out.Price)
	assert.Equal(t, 510.0, book.Cash)

	pos := book.Position("AAPL")
	require.NotNil(t, pos)
	assert.Equal(t, int64(10), pos.Shares)
	assert.Equal(t, 49.0, pos.AverageCost)
	assert.Equal(t, 490.0, pos.CostBasis)
	assert.Equal(t, 40.0, pos.StopLoss)
}

func TestLimitBuyFillsAtLimitWhenOpenAbove(t *testing.T) {
	book := ledger.NewBook(1000)
	quote := types.MarketQuote{Open: 52, High: 53, Low: 49, Close: 51}

	out, err := Apply(buyOrder("AAPL", 10, types.OrderTypeLimit, fptr(50)), book, quote)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFilled, out.Status)
	assert.Equal(t, 50.0, out.Price)
}

func TestLimitBuyNotMet(t *testing.T) {
	book := ledger.NewBook(1000)
	quote := types.MarketQuote{Open: 53, High: 55, Low: 52, Close: 54}

	out, err := Apply(buyOrder("AAPL", 10, types.OrderTypeLimit, fptr(50)), book, quote)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "limit price")
	assert.Contains(t, out.Reason, "not met")
	assert.Equal(t, 1000.0, book.Cash)
	assert.Nil(t, book.Position("AAPL"))
}

func TestBuyInsufficientCash(t *testing.T) {
	book := ledger.NewBook(100)
	quote := types.MarketQuote{Open: 49, High: 51, Low: 48, Close: 50}

	out, err := Apply(buyOrder("AAPL", 10, types.OrderTypeMarket, nil), book, quote)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Equal(t, "insufficient cash", out.Reason)
	assert.Equal(t, 100.0, book.Cash)
	assert.Nil(t, book.Position("AAPL"))
}

func TestMarketBuyFillsAtOpen(t *testing.T) {
	book := ledger.NewBook(1000)
	quote := types.MarketQuote{Open: 49, High: 51, Low: 48, Close: 50}

	out, err := Apply(buyOrder("AAPL", 10, types.OrderTypeMarket, nil), book, quote)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFilled, out.Status)
	assert.Equal(t, 49.0, out.Price)
	assert.Equal(t, 510.0, book.Cash)
}

func TestBuyMergesByWeightedAverage(t *testing.T) {
	book := ledger.NewBook(10_000)

	_, err := Apply(buyOrder("AAPL", 10, types.OrderTypeMarket, nil), book,
		types.MarketQuote{Open: 40, High: 42, Low: 39, Close: 41})
	require.NoError(t, err)

	_, err = Apply(buyOrder("AAPL", 30, types.OrderTypeMarket, nil), book,
		types.MarketQuote{Open: 60, High: 62, Low: 59, Close: 61})
	require.NoError(t, err)

	pos := book.Position("AAPL")
	require.NotNil(t, pos)
	assert.Equal(t, int64(40), pos.Shares)
	assert.Equal(t, 2200.0, pos.CostBasis) // 10*40 + 30*60
	assert.Equal(t, 55.0, pos.AverageCost) // 2200 / 40
	// Merging never touches the original stop-loss.
	assert.Equal(t, 40.0, pos.StopLoss)
}

func TestMarketSellClosesPosition(t *testing.T) {
	book := ledger.NewBook(0)
	book.Positions["AAPL"] = &ledger.Position{
		Ticker: "AAPL", Shares: 10, CostBasis: 490, AverageCost: 49,
	}

	out, err := Apply(sellOrder("AAPL", 10, types.OrderTypeMarket, nil), book,
		types.MarketQuote{Open: 55, High: 56, Low: 54, Close: 55})
	require.NoError(t, err)

	assert.Equal(t, types.StatusFilled, out.Status)
	assert.Equal(t, 55.0, out.Price)
	require.NotNil(t, out.PnL)
	assert.InDelta(t, 60.0, *out.PnL, 1e-9) // (55-49)*10
	assert.Equal(t, 550.0, book.Cash)

	// Shares reached zero: the row must be gone, not retained at zero.
	assert.Nil(t, book.Position("AAPL"))
}

func TestPartialSellScalesCostBasis(t *testing.T) {
	book := ledger.NewBook(0)
	book.Positions["AAPL"] = &ledger.Position{
		Ticker: "AAPL", Shares: 10, CostBasis: 490, AverageCost: 49,
	}

	_, err := Apply(sellOrder("AAPL", 4, types.OrderTypeMarket, nil), book,
		types.MarketQuote{Open: 55, High: 56, Low: 54, Close: 55})
	require.NoError(t, err)

	pos := book.Position("AAPL")
	require.NotNil(t, pos)
	assert.Equal(t, int64(6), pos.Shares)
	assert.InDelta(t, 294.0, pos.CostBasis, 1e-9) // 49 * 6
	assert.Equal(t, 49.0, pos.AverageCost)
}

func TestLimitSellFillsAtBetterOfOpenAndLimit(t *testing.T) {
	book := ledger.NewBook(0)
	book.Positions["AAPL"] = &ledger.Position{
		Ticker: "AAPL", Shares: 10, CostBasis: 490, AverageCost: 49,
	}

	out, err := Apply(sellOrder("AAPL", 10, types.OrderTypeLimit, fptr(52)), book,
		types.MarketQuote{Open: 55, High: 56, Low: 54, Close: 55})
	require.NoError(t, err)

	assert.Equal(t, types.StatusFilled, out.Status)
	assert.Equal(t, 55.0, out.Price) // open above limit: fill at open
}

func TestLimitSellNotMet(t *testing.T) {
	book := ledger.NewBook(0)
	book.Positions["AAPL"] = &ledger.Position{
		Ticker: "AAPL", Shares: 10, CostBasis: 490, AverageCost: 49,
	}

	out, err := Apply(sellOrder("AAPL", 10, types.OrderTypeLimit, fptr(60)), book,
		types.MarketQuote{Open: 55, High: 56, Low: 54, Close: 55})
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "not met")
	assert.Equal(t, int64(10), book.Position("AAPL").Shares)
	assert.Equal(t, 0.0, book.Cash)
}

func TestSellRejections(t *testing.T) {
	book := ledger.NewBook(0)
	book.Positions["AAPL"] = &ledger.Position{
		Ticker: "AAPL", Shares: 5, CostBasis: 245, AverageCost: 49,
	}
	quote := types.MarketQuote{Open: 55, High: 56, Low: 54, Close: 55}

	out, err := Apply(sellOrder("MSFT", 5, types.OrderTypeMarket, nil), book, quote)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "no position")

	out, err = Apply(sellOrder("AAPL", 10, types.OrderTypeMarket, nil), book, quote)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "insufficient shares")

	// Neither rejection may mutate anything.
	assert.Equal(t, 0.0, book.Cash)
	assert.Equal(t, int64(5), book.Position("AAPL").Shares)
	assert.Equal(t, 245.0, book.Position("AAPL").CostBasis)
}

func TestStopLossUpdate(t *testing.T) {
	book := ledger.NewBook(123.45)
	book.Positions["AAPL"] = &ledger.Position{
		Ticker: "AAPL", Shares: 5, CostBasis: 245, AverageCost: 49, StopLoss: 40,
	}

	order := types.Order{
		Action:        types.ActionUpdateStop,
		Ticker:        "AAPL",
		StopLoss:      fptr(45),
		ExecutionDate: "2025-03-10",
	}
	out, err := Apply(order, book, types.MarketQuote{})
	require.NoError(t, err)

	assert.Equal(t, types.StatusFilled, out.Status)
	assert.Equal(t, 45.0, book.Position("AAPL").StopLoss)
	assert.Equal(t, 123.45, book.Cash)
	assert.Equal(t, int64(5), book.Position("AAPL").Shares)

	order.Ticker = "MSFT"
	out, err = Apply(order, book, types.MarketQuote{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "not in portfolio")
}

func TestUnknownActionIsContractViolation(t *testing.T) {
	book := ledger.NewBook(1000)

	_, err := Apply(types.Order{Action: "SHORT", Ticker: "AAPL"}, book, types.MarketQuote{})
	assert.Error(t, err)
}

func TestOversizedShareCountIsContractViolation(t *testing.T) {
	book := ledger.NewBook(1000)
	quote := types.MarketQuote{Open: 49, High: 51, Low: 48, Close: 50}

	// A count this large would overflow the int64 conversion and turn the
	// cost negative; it must surface as an error, never a fill.
	_, err := Apply(buyOrder("AAPL", 1e20, types.OrderTypeMarket, nil), book, quote)
	require.Error(t, err)
	assert.Equal(t, 1000.0, book.Cash)
	assert.Nil(t, book.Position("AAPL"))

	book.Positions["AAPL"] = &ledger.Position{
		Ticker: "AAPL", Shares: 10, CostBasis: 490, AverageCost: 49,
	}
	_, err = Apply(sellOrder("AAPL", 1e20, types.OrderTypeMarket, nil), book, quote)
	require.Error(t, err)
	assert.Equal(t, 1000.0, book.Cash)
	assert.Equal(t, int64(10), book.Position("AAPL").Shares)
}

func TestLimitOrderWithoutLimitPriceIsContractViolation(t *testing.T) {
	book := ledger.NewBook(1000)
	quote := types.MarketQuote{Open: 49, High: 51, Low: 48, Close: 50}

	_, err := Apply(buyOrder("AAPL", 10, types.OrderTypeLimit, nil), book, quote)
	require.Error(t, err)
	assert.Equal(t, 1000.0, book.Cash)

	book.Positions["AAPL"] = &ledger.Position{
		Ticker: "AAPL", Shares: 10, CostBasis: 490, AverageCost: 49,
	}
	_, err = Apply(sellOrder("AAPL", 10, types.OrderTypeLimit, nil), book, quote)
	require.Error(t, err)
	assert.Equal(t, int64(10), book.Position("AAPL").Shares)
}
