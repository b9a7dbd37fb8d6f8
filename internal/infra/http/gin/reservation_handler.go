package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/handlers/reservations"
)

type ReservationHandler struct {
	Service Service
	Logger  *slog.Logger
}

type createReservationRequest struct {
	RoomID   string `json:"room_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
	// Hold creates a PENDING_HOLD that expires after HoldTTLSeconds unless confirmed.
	Hold           bool   `json:"hold"`
	HoldTTLSeconds int    `json:"hold_ttl_seconds"`
	Reference      string `json:"reference"`
}

func (h ReservationHandler) Create(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, invalidBody(err))
		return
	}
	var d dates
	cmd := reservations.CreateReservationCommand{
		Scope:           s,
		RoomID:          req.RoomID,
		CheckIn:         d.parse("check_in", req.CheckIn, true),
		CheckOut:        d.parse("check_out", req.CheckOut, true),
		Guests:          req.Guests,
		Hold:            req.Hold,
		HoldTTL:         time.Duration(req.HoldTTLSeconds) * time.Second,
		Reference:       req.Reference,
		IdempotencyKeyV: c.GetHeader(HeaderIdempotencyKey),
	}
	if err := d.err(); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	res, err := h.Service.CreateReservation(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h ReservationHandler) Get(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	res, err := h.Service.GetReservation(c.Request.Context(), reservations.GetReservationQuery{Scope: s, ReservationID: c.Param("id")})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h ReservationHandler) Confirm(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	res, err := h.Service.ConfirmReservation(c.Request.Context(), reservations.ConfirmReservationCommand{Scope: s, ReservationID: c.Param("id")})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type cancelReservationRequest struct {
	Reason          string `json:"reason"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var req cancelReservationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, h.Logger, invalidBody(err))
			return
		}
	}
	res, err := h.Service.CancelReservation(c.Request.Context(), reservations.CancelReservationCommand{
		Scope:           s,
		ReservationID:   c.Param("id"),
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
