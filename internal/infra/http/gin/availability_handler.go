package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/handlers/calendar"
	"innkeep/internal/app/handlers/occupancy"
)

type AvailabilityHandler struct {
	Service Service
	Logger  *slog.Logger
}

// Check answers GET /rooms/:id/availability?check_in=&check_out=&guests=&exclude=
func (h AvailabilityHandler) Check(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var d dates
	q := calendar.CheckAvailabilityQuery{
		Scope:                s,
		RoomID:               c.Param("id"),
		CheckIn:              d.parse("check_in", c.Query("check_in"), true),
		CheckOut:             d.parse("check_out", c.Query("check_out"), true),
		ExcludeReservationID: c.Query("exclude"),
		Guests:               queryInt(c, "guests", &d),
	}
	if err := d.err(); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	res, err := h.Service.CheckAvailability(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Grid answers GET /grid?from=&to=&rooms=a,b
func (h AvailabilityHandler) Grid(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var d dates
	q := calendar.BuildGridQuery{
		Scope:   s,
		RoomIDs: splitList(c.Query("rooms")),
		From:    d.parse("from", c.Query("from"), true),
		To:      d.parse("to", c.Query("to"), true),
	}
	if err := d.err(); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	grid, err := h.Service.BuildGrid(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

func (h AvailabilityHandler) Occupancy(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var d dates
	q := occupancy.ComputeStatsQuery{
		Scope:   s,
		RoomIDs: splitList(c.Query("rooms")),
		From:    d.parse("from", c.Query("from"), true),
		To:      d.parse("to", c.Query("to"), true),
	}
	if err := d.err(); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	stats, err := h.Service.ComputeOccupancyStats(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type exportRequest struct {
	RoomIDs []string `json:"room_ids"`
	From    string   `json:"from"`
	To      string   `json:"to"`
}

func (h AvailabilityHandler) Export(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, invalidBody(err))
		return
	}
	var d dates
	q := occupancy.ExportReportQuery{
		Scope:   s,
		RoomIDs: req.RoomIDs,
		From:    d.parse("from", req.From, true),
		To:      d.parse("to", req.To, true),
	}
	if err := d.err(); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	out, err := h.Service.ExportOccupancyReport(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
