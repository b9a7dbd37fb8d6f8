package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	colRooms        = "rooms"
	colCells        = "calendar_cells"
	colBlocks       = "block_periods"
	colRules        = "availability_rules"
	colReservations = "reservations"
)

type Client struct {
	DB *mongo.Database
}

// New connects to uri. Transactions need a replica set or sharded cluster.
func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, readpref.Primary())
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes every repository relies on.
// The cell index is the storage-level guarantee that one (company, room, date) exists once.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		colCells: {
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "room_id", Value: 1}, {Key: "date", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "blocked_by.period", Value: 1}}},
		},
		colReservations: {
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "room_id", Value: 1}, {Key: "check_in", Value: 1}}},
		},
		colBlocks: {
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "active", Value: 1}}},
		},
		colRules: {
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "active", Value: 1}}},
		},
		colRooms: {
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "active", Value: 1}}},
		},
	}
	for col, models := range specs {
		if _, err := c.DB.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
