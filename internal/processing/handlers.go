package processing

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgersim/ledgersim-api/internal/types"
	"github.com/ledgersim/ledgersim-api/pkg/response"
)

// GinHandlers contains the HTTP handlers for triggering runs.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// ProcessDayHandler handles POST requests that process one trading day.
// URL parameter: date (YYYY-MM-DD). A rolled-back run answers with the run
// result and a RUN_ROLLED_BACK error code; the ledger is left untouched.
func (h *GinHandlers) ProcessDayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, err := time.Parse(types.DateLayout, c.Param("date"))
		if err != nil {
			response.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}

		result, err := h.service.ProcessDay(c.Request.Context(), date)
		if err != nil {
			response.RunFailed(c, result, err.Error())
			return
		}
		response.Success(c, result)
	}
}
