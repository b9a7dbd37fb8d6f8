package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/handlers/calendar"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/shared/money"
)

type CalendarHandler struct {
	Service Service
	Logger  *slog.Logger
}

func (h CalendarHandler) ListBlocks(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	list, err := h.Service.ListBlockPeriods(c.Request.Context(), calendar.ListBlockPeriodsQuery{Scope: s, ActiveOnly: activeOnly})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

type createBlockRequest struct {
	RoomIDs    []string                `json:"room_ids"`
	Start      string                  `json:"start"`
	End        string                  `json:"end"`
	Reason     string                  `json:"reason"`
	Recurrence availability.Recurrence `json:"recurrence"`
}

func (h CalendarHandler) CreateBlock(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var req createBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, invalidBody(err))
		return
	}
	var d dates
	cmd := calendar.CreateBlockPeriodCommand{
		Scope:           s,
		RoomIDs:         req.RoomIDs,
		Start:           d.parse("start", req.Start, true),
		End:             d.parse("end", req.End, false),
		Reason:          req.Reason,
		Recurrence:      req.Recurrence,
		IdempotencyKeyV: c.GetHeader(HeaderIdempotencyKey),
	}
	if err := d.err(); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	out, err := h.Service.CreateBlockPeriod(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h CalendarHandler) DeactivateBlock(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	out, err := h.Service.DeactivateBlockPeriod(c.Request.Context(), calendar.DeactivateBlockPeriodCommand{Scope: s, PeriodID: c.Param("id")})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type setPriceRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	// Price null clears the override back to rule or base pricing.
	Price *money.Money `json:"price"`
}

func (h CalendarHandler) SetPrices(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, invalidBody(err))
		return
	}
	var d dates
	cmd := calendar.SetDatePriceCommand{
		Scope:  s,
		RoomID: c.Param("id"),
		From:   d.parse("from", req.From, true),
		To:     d.parse("to", req.To, true),
		Price:  req.Price,
	}
	if err := d.err(); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	out, err := h.Service.SetDatePrice(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
