package ginserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/handlers/rules"
)

type RuleHandler struct {
	Service Service
	Logger  *slog.Logger
}

func (h RuleHandler) List(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	list, err := h.Service.ListRules(c.Request.Context(), rules.ListRulesQuery{Scope: s})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

type upsertRuleRequest struct {
	ID        string          `json:"id"`
	RoomID    *string         `json:"room_id"`
	Type      string          `json:"type"`
	Config    json.RawMessage `json:"config"`
	Priority  int             `json:"priority"`
	Active    *bool           `json:"active"`
	ValidFrom string          `json:"valid_from"`
	ValidTo   string          `json:"valid_to"`
	Weekdays  []int           `json:"weekdays"`
}

func (h RuleHandler) Upsert(c *gin.Context) {
	s, err := scope(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var req upsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, invalidBody(err))
		return
	}
	var d dates
	cmd := rules.UpsertRuleCommand{
		Scope:     s,
		RuleID:    req.ID,
		RoomID:    req.RoomID,
		Type:      req.Type,
		Config:    req.Config,
		Priority:  req.Priority,
		Active:    req.Active,
		ValidFrom: d.parse("valid_from", req.ValidFrom, false),
		ValidTo:   d.parse("valid_to", req.ValidTo, false),
		Weekdays:  req.Weekdays,
	}
	if err := d.err(); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	out, err := h.Service.UpsertRule(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	c.JSON(status, out)
}
