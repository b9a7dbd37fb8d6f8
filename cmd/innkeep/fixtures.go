package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

type roomFixture struct {
	CompanyID    string      `json:"company_id"`
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	BasePrice    money.Money `json:"base_price"`
	Active       *bool       `json:"active"`
	MaxOccupancy int         `json:"max_occupancy"`
}

func (fx roomFixture) room() rooms.Room {
	active := true
	if fx.Active != nil {
		active = *fx.Active
	}
	return rooms.Room{
		ID:           rooms.RoomID(fx.ID),
		Company:      tenancy.CompanyID(fx.CompanyID),
		Name:         fx.Name,
		BasePrice:    fx.BasePrice,
		Active:       active,
		MaxOccupancy: fx.MaxOccupancy,
	}
}

// loadRoomFixtures seeds the room catalog; invalid entries are logged and skipped.
func loadRoomFixtures(ctx context.Context, path string, writer rooms.Writer, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("room fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("room fixtures file empty", "path", path)
		return nil
	}
	var fixtures []roomFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	imported := 0
	for _, fx := range fixtures {
		room := fx.room()
		if err := room.Validate(); err != nil {
			logger.Error("fixture invalid", "company_id", fx.CompanyID, "room_id", fx.ID, "error", err)
			continue
		}
		if err := writer.Save(ctx, room); err != nil {
			logger.Error("cannot store fixture room", "company_id", fx.CompanyID, "room_id", fx.ID, "error", err)
			continue
		}
		imported++
	}
	logger.Info("room fixtures imported", "path", path, "rooms", imported)
	return nil
}

func fixturesPath(configured string) string {
	if configured != "" {
		return configured
	}
	candidates := []string{
		filepath.Join("data", "rooms.json"),
		filepath.Join("..", "..", "data", "rooms.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
