package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
)

// DefaultLockTimeout bounds how long a write transaction may take to commit.
const DefaultLockTimeout = 2 * time.Second

var (
	ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")
	ErrUnitClosed              = errors.New("mongo: unit of work already finished")
)

// Store wires Mongo session transactions into the unit of work interface.
// Every unit, read-only ones included, reads from one snapshot.
type Store struct {
	DB          *mongo.Database
	LockTimeout time.Duration
}

func NewStore(db *mongo.Database, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{DB: db, LockTimeout: lockTimeout}
}

func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if s.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := s.DB.Client().StartSession()
	if err != nil {
		return nil, mapError("mongo.begin", err)
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = s.LockTimeout
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetReadPreference(readpref.Primary()).
		SetWriteConcern(writeconcern.Majority()).
		SetMaxCommitTime(&timeout)
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, mapError("mongo.begin", err)
	}
	return &Unit{db: s.DB, session: session, readOnly: opts.ReadOnly}, nil
}

// Ping is the readiness probe of the store.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.Client().Ping(ctx, readpref.Primary())
}

// Save upserts a catalog room outside any transaction.
func (s *Store) Save(ctx context.Context, room rooms.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	return saveRoom(ctx, s.DB.Collection(colRooms), room)
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool
	done     bool
}

func (u *Unit) Rooms() rooms.Catalog { return roomCatalog{col: u.db.Collection(colRooms)} }

func (u *Unit) Cells() availability.CellRepository {
	return cellRepository{u: u, col: u.db.Collection(colCells)}
}

func (u *Unit) Blocks() availability.BlockPeriodRepository {
	return blockRepository{u: u, col: u.db.Collection(colBlocks)}
}

func (u *Unit) Rules() availability.RuleRepository {
	return ruleRepository{u: u, col: u.db.Collection(colRules)}
}

func (u *Unit) Reservations() availability.ReservationRepository {
	return reservationRepository{u: u, col: u.db.Collection(colReservations)}
}

func (u *Unit) writable() error {
	switch {
	case u.done:
		return ErrUnitClosed
	case u.readOnly:
		return ErrReadOnly
	}
	return nil
}

var ErrReadOnly = errors.New("mongo: write through read-only unit")

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return mapError("mongo.commit", u.session.AbortTransaction(ctx))
	}
	return mapError("mongo.commit", u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext binds the session so repository calls run inside the transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

// mapError turns aborted transactions and write conflicts into retryable store failures.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var le mongo.LabeledError
	if errors.As(err, &le) && (le.HasErrorLabel("TransientTransactionError") || le.HasErrorLabel("UnknownTransactionCommitResult")) {
		return availability.Transient(op, err)
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == codeWriteConflict || ce.Code == codeLockTimeout || ce.Code == codeMaxTimeExpired) {
		return availability.Transient(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return availability.Transient(op, err)
	}
	return err
}

const (
	codeMaxTimeExpired = 50
	codeWriteConflict  = 112
	codeLockTimeout    = 24
)

var _ uow.UoWFactory = (*Store)(nil)
