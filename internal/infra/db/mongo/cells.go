package mongo

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

// cellRepository reads cells in one query per call and writes changed cells in one bulk write.
// Concurrent writers of the same cell abort with a write conflict, which surfaces as transient.
type cellRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r cellRepository) Range(ctx context.Context, company tenancy.CompanyID, roomIDs []rooms.RoomID, span daterange.Span) ([]availability.Cell, error) {
	filter := bson.M{
		"company_id": string(company),
		"date":       bson.M{"$gte": formatDay(span.From), "$lte": formatDay(span.To)},
	}
	if len(roomIDs) > 0 {
		filter["room_id"] = bson.M{"$in": roomStrings(roomIDs)}
	}
	return r.find(ctx, filter)
}

func (r cellRepository) find(ctx context.Context, filter bson.M) ([]availability.Cell, error) {
	opts := options.Find().SetSort(bson.D{{Key: "room_id", Value: 1}, {Key: "date", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError("mongo.cells.find", err)
	}
	var docs []cellDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError("mongo.cells.find", err)
	}
	out := make([]availability.Cell, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCell())
	}
	return out, nil
}

// load returns the current cell for every key, defaulting the untouched ones.
func (r cellRepository) load(ctx context.Context, company tenancy.CompanyID, keys []availability.CellKey) (map[availability.CellKey]availability.Cell, error) {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, cellID(company, k))
	}
	cells, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}, "company_id": string(company)})
	if err != nil {
		return nil, err
	}
	idx := make(map[availability.CellKey]availability.Cell, len(keys))
	for _, c := range cells {
		idx[c.Key()] = c
	}
	for _, k := range keys {
		if _, ok := idx[k]; !ok {
			idx[k] = availability.DefaultCell(company, k.Room, k.Date)
		}
	}
	return idx, nil
}

func (r cellRepository) put(ctx context.Context, cells []availability.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(cells))
	for _, c := range cells {
		doc := newCellDocument(c)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := r.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return err
}

func nightKeys(room rooms.RoomID, nights []time.Time) []availability.CellKey {
	keys := make([]availability.CellKey, 0, len(nights))
	for _, n := range nights {
		keys = append(keys, availability.KeyOf(room, n))
	}
	return keys
}

func (r cellRepository) Claim(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, nights []time.Time, reservation availability.ReservationID, actor tenancy.ActorID, at time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	keys := nightKeys(room, nights)
	idx, err := r.load(ctx, company, keys)
	if err != nil {
		return err
	}
	claimed := make([]availability.Cell, 0, len(keys))
	for _, k := range keys {
		c := idx[k]
		if !c.Open() && c.ReservationID != reservation {
			return availability.ErrNightTaken
		}
		if err := c.Claim(reservation); err != nil {
			return err
		}
		c.UpdatedBy, c.UpdatedAt = actor, at
		claimed = append(claimed, c)
	}
	if err := r.put(ctx, claimed); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return availability.ErrNightTaken
		}
		return mapError("mongo.cells.claim", err)
	}
	return nil
}

func (r cellRepository) Release(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, nights []time.Time, reservation availability.ReservationID, at time.Time) ([]time.Time, error) {
	if err := r.u.writable(); err != nil {
		return nil, err
	}
	keys := nightKeys(room, nights)
	idx, err := r.load(ctx, company, keys)
	if err != nil {
		return nil, err
	}
	var (
		changed  []availability.Cell
		released []time.Time
	)
	for _, k := range keys {
		c := idx[k]
		if !c.Release(reservation) {
			continue
		}
		c.UpdatedAt = at
		changed = append(changed, c)
		released = append(released, c.Date)
	}
	if err := r.put(ctx, changed); err != nil {
		return nil, mapError("mongo.cells.release", err)
	}
	return released, nil
}

func (r cellRepository) Block(ctx context.Context, company tenancy.CompanyID, marks []availability.BlockMark, at time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	keys := make([]availability.CellKey, 0, len(marks))
	for _, m := range marks {
		keys = append(keys, availability.KeyOf(m.Room, m.Date))
	}
	idx, err := r.load(ctx, company, keys)
	if err != nil {
		return err
	}
	var changed []availability.Cell
	for _, m := range marks {
		k := availability.KeyOf(m.Room, m.Date)
		c := idx[k]
		if c.AddBlock(m.Period, m.Reason) {
			c.UpdatedAt = at
			idx[k] = c
			changed = append(changed, c)
		}
	}
	if err := r.put(ctx, changed); err != nil {
		return mapError("mongo.cells.block", err)
	}
	return nil
}

func (r cellRepository) Unblock(ctx context.Context, company tenancy.CompanyID, period availability.BlockPeriodID, at time.Time) ([]availability.CellKey, error) {
	if err := r.u.writable(); err != nil {
		return nil, err
	}
	cells, err := r.find(ctx, bson.M{"company_id": string(company), "blocked_by.period": string(period)})
	if err != nil {
		return nil, err
	}
	changed := make([]availability.Cell, 0, len(cells))
	keys := make([]availability.CellKey, 0, len(cells))
	for _, c := range cells {
		if !c.RemoveBlock(period) {
			continue
		}
		c.UpdatedAt = at
		changed = append(changed, c)
		keys = append(keys, c.Key())
	}
	if err := r.put(ctx, changed); err != nil {
		return nil, mapError("mongo.cells.unblock", err)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Room != keys[j].Room {
			return keys[i].Room < keys[j].Room
		}
		return keys[i].Date.Before(keys[j].Date)
	})
	return keys, nil
}

func (r cellRepository) SetPrice(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, dates []time.Time, price *money.Money, actor tenancy.ActorID, at time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	keys := nightKeys(room, dates)
	idx, err := r.load(ctx, company, keys)
	if err != nil {
		return err
	}
	changed := make([]availability.Cell, 0, len(keys))
	for _, k := range keys {
		c := idx[k]
		c.CustomPrice = nil
		if price != nil {
			p := *price
			c.CustomPrice = &p
		}
		c.UpdatedBy, c.UpdatedAt = actor, at
		changed = append(changed, c)
	}
	if err := r.put(ctx, changed); err != nil {
		return mapError("mongo.cells.price", err)
	}
	return nil
}

func roomStrings(ids []rooms.RoomID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
