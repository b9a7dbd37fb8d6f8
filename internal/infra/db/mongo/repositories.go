package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

type roomCatalog struct {
	col *mongo.Collection
}

func (r roomCatalog) ByID(ctx context.Context, company tenancy.CompanyID, id rooms.RoomID) (*rooms.Room, error) {
	var doc roomDocument
	err := r.col.FindOne(ctx, bson.M{"_id": docID(company, string(id))}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, rooms.ErrRoomNotFound
	}
	if err != nil {
		return nil, mapError("mongo.rooms.get", err)
	}
	room := doc.toRoom()
	return &room, nil
}

// List returns the requested rooms in request order, or every active room by id.
func (r roomCatalog) List(ctx context.Context, company tenancy.CompanyID, ids []rooms.RoomID) ([]rooms.Room, error) {
	filter := bson.M{"company_id": string(company)}
	if len(ids) > 0 {
		filter["room_id"] = bson.M{"$in": roomStrings(ids)}
	} else {
		filter["active"] = true
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "room_id", Value: 1}}))
	if err != nil {
		return nil, mapError("mongo.rooms.list", err)
	}
	var docs []roomDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError("mongo.rooms.list", err)
	}
	if len(ids) == 0 {
		out := make([]rooms.Room, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.toRoom())
		}
		return out, nil
	}
	byID := make(map[rooms.RoomID]rooms.Room, len(docs))
	for _, d := range docs {
		byID[rooms.RoomID(d.RoomID)] = d.toRoom()
	}
	out := make([]rooms.Room, 0, len(ids))
	seen := make(map[rooms.RoomID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		room, ok := byID[id]
		if !ok {
			return nil, rooms.ErrRoomNotFound
		}
		out = append(out, room)
	}
	return out, nil
}

func saveRoom(ctx context.Context, col *mongo.Collection, room rooms.Room) error {
	doc := newRoomDocument(room)
	_, err := col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// saveVersioned writes doc when the stored version equals version; zero inserts.
func saveVersioned(ctx context.Context, col *mongo.Collection, id string, version int64, doc any) error {
	if version == 0 {
		_, err := col.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return availability.ErrDuplicate
		}
		return mapError("mongo.save", err)
	}
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc)
	if err != nil {
		return mapError("mongo.save", err)
	}
	if res.MatchedCount == 0 {
		return availability.ErrConcurrentUpdate
	}
	return nil
}

type blockRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r blockRepository) ByID(ctx context.Context, company tenancy.CompanyID, id availability.BlockPeriodID) (*availability.BlockPeriod, error) {
	var doc blockDocument
	err := r.col.FindOne(ctx, bson.M{"_id": docID(company, string(id))}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, availability.ErrBlockPeriodNotFound
	}
	if err != nil {
		return nil, mapError("mongo.blocks.get", err)
	}
	return doc.toPeriod(), nil
}

func (r blockRepository) Save(ctx context.Context, period *availability.BlockPeriod) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newBlockDocument(period)
	doc.Version = period.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, period.Version, doc); err != nil {
		return err
	}
	period.Version = doc.Version
	return nil
}

func (r blockRepository) List(ctx context.Context, company tenancy.CompanyID, activeOnly bool) ([]*availability.BlockPeriod, error) {
	filter := bson.M{"company_id": string(company)}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "period_id", Value: 1}}))
	if err != nil {
		return nil, mapError("mongo.blocks.list", err)
	}
	var docs []blockDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError("mongo.blocks.list", err)
	}
	out := make([]*availability.BlockPeriod, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toPeriod())
	}
	return out, nil
}

type ruleRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r ruleRepository) ByID(ctx context.Context, company tenancy.CompanyID, id availability.RuleID) (*availability.Rule, error) {
	var doc ruleDocument
	err := r.col.FindOne(ctx, bson.M{"_id": docID(company, string(id))}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, availability.ErrRuleNotFound
	}
	if err != nil {
		return nil, mapError("mongo.rules.get", err)
	}
	return doc.toRule()
}

func (r ruleRepository) Save(ctx context.Context, rule *availability.Rule) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc, err := newRuleDocument(rule)
	if err != nil {
		return err
	}
	doc.Version = rule.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, rule.Version, doc); err != nil {
		return err
	}
	rule.Version = doc.Version
	return nil
}

func (r ruleRepository) find(ctx context.Context, filter bson.M) ([]*availability.Rule, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "rule_id", Value: 1}}))
	if err != nil {
		return nil, mapError("mongo.rules.find", err)
	}
	var docs []ruleDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError("mongo.rules.find", err)
	}
	out := make([]*availability.Rule, 0, len(docs))
	for _, d := range docs {
		rule, err := d.toRule()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// ForWindow reads the active rules of the company once and keeps those overlapping span.
func (r ruleRepository) ForWindow(ctx context.Context, company tenancy.CompanyID, span daterange.Span) ([]*availability.Rule, error) {
	all, err := r.find(ctx, bson.M{"company_id": string(company), "active": true})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rule := range all {
		if rule.Overlaps(span) {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r ruleRepository) List(ctx context.Context, company tenancy.CompanyID) ([]*availability.Rule, error) {
	return r.find(ctx, bson.M{"company_id": string(company)})
}

type reservationRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r reservationRepository) ByID(ctx context.Context, company tenancy.CompanyID, id availability.ReservationID) (*availability.Reservation, error) {
	var doc reservationDocument
	err := r.col.FindOne(ctx, bson.M{"_id": docID(company, string(id))}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, availability.ErrReservationNotFound
	}
	if err != nil {
		return nil, mapError("mongo.reservations.get", err)
	}
	return doc.toReservation(), nil
}

func (r reservationRepository) Insert(ctx context.Context, res *availability.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newReservationDocument(res)
	doc.Version = 1
	if err := saveVersioned(ctx, r.col, doc.ID, 0, doc); err != nil {
		return err
	}
	res.Version = 1
	return nil
}

func (r reservationRepository) Save(ctx context.Context, res *availability.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if res.Version == 0 {
		return availability.ErrReservationNotFound
	}
	doc := newReservationDocument(res)
	doc.Version = res.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, res.Version, doc); err != nil {
		return err
	}
	res.Version = doc.Version
	return nil
}

// Overlapping uses string order on YYYY-MM-DD dates: checkIn < stay.CheckOut and checkOut > stay.CheckIn.
func (r reservationRepository) Overlapping(ctx context.Context, company tenancy.CompanyID, roomIDs []rooms.RoomID, stay daterange.DateRange) ([]*availability.Reservation, error) {
	filter := bson.M{
		"company_id": string(company),
		"status":     bson.M{"$in": []string{string(availability.StatusPendingHold), string(availability.StatusConfirmed)}},
		"check_in":   bson.M{"$lt": formatDay(stay.CheckOut)},
		"check_out":  bson.M{"$gt": formatDay(stay.CheckIn)},
	}
	if len(roomIDs) > 0 {
		filter["room_id"] = bson.M{"$in": roomStrings(roomIDs)}
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}, {Key: "reservation_id", Value: 1}}))
	if err != nil {
		return nil, mapError("mongo.reservations.overlapping", err)
	}
	var docs []reservationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError("mongo.reservations.overlapping", err)
	}
	out := make([]*availability.Reservation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toReservation())
	}
	return out, nil
}
