package ledger

import (
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/ledgersim/ledgersim-api/pkg/response"
	"github.com/rs/zerolog/log"
)

// GinHandlers contains the HTTP handlers for order intake and read-only
// ledger views.
type GinHandlers struct {
	db *Database
}

func NewGinHandlers(db *Database) *GinHandlers {
	return &GinHandlers{db: db}
}

// EnqueueOrderHandler handles POST requests that add an order to the pending
// queue. Only the bare wire shape is checked here; full validation happens on
// the run that resolves the order, so that every rejection leaves a trade log
// row with a reason.
func (h *GinHandlers) EnqueueOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var order types.Order
		if err := c.ShouldBindJSON(&order); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if order.Ticker == "" || order.Action == "" || order.ExecutionDate == "" {
			response.BadRequest(c, "ticker, action and execution_date are required")
			return
		}
		if order.OrderID == "" {
			order.OrderID = uuid.New().String()
		}

		row := FromOrder(order)
		if err := h.db.EnqueueOrder(&row); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		log.Info().
			Str("order_id", order.OrderID).
			Str("ticker", order.Ticker).
			Str("action", order.Action).
			Str("execution_date", order.ExecutionDate).
			Msg("order queued")

		response.Success(c, order)
	}
}

// PortfolioHandler handles GET requests for the current positions and cash.
func (h *GinHandlers) PortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		book, err := h.db.LoadBook()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		positions := make([]Position, 0, len(book.Positions))
		for _, p := range book.Positions {
			positions = append(positions, *p)
		}
		sort.Slice(positions, func(i, j int) bool {
			return positions[i].Ticker < positions[j].Ticker
		})

		response.Success(c, gin.H{
			"cash":      Round2(book.Cash),
			"positions": positions,
		})
	}
}

// PortfolioHistoryHandler handles GET requests for the daily equity history.
func (h *GinHandlers) PortfolioHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.db.PortfolioHistory()
		response.Handle(c, entries, err)
	}
}

// TradeLogHandler handles GET requests for the trade log.
func (h *GinHandlers) TradeLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.db.TradeLog()
		response.Handle(c, entries, err)
	}
}
