// Package sqlite is the embedded single-node store. Write units are BEGIN IMMEDIATE
// transactions, so writers are serialized by the database lock and wait up to the
// busy timeout before failing as transient.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
)

// DefaultLockTimeout bounds the wait for the database write lock.
const DefaultLockTimeout = 2 * time.Second

var (
	ErrUnitClosed = errors.New("sqlite: unit of work already finished")
	ErrReadOnly   = errors.New("sqlite: write through read-only unit")
)

type Options struct {
	Path        string
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// Store owns two pools on the same file: writers take the lock on BEGIN, readers use
// deferred transactions that read one WAL snapshot.
type Store struct {
	writer      *sql.DB
	reader      *sql.DB
	path        string
	lockTimeout time.Duration
	outbox      *Outbox
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite: database path required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	writer, err := openPool(ctx, opts.Path, "immediate", timeout)
	if err != nil {
		return nil, err
	}
	reader, err := openPool(ctx, opts.Path, "deferred", timeout)
	if err != nil {
		writer.Close()
		return nil, err
	}
	applied, err := RunMigrations(ctx, writer)
	if err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	for _, name := range applied {
		logger.Info("sqlite migration applied", "name", name, "path", opts.Path)
	}
	s := &Store{writer: writer, reader: reader, path: opts.Path, lockTimeout: timeout}
	s.outbox = &Outbox{db: writer}
	return s, nil
}

// Open database with:
// - _journal_mode=WAL so readers never block the writer
// - _busy_timeout as the default lock wait
// - _txlock selecting BEGIN IMMEDIATE or DEFERRED
func openPool(ctx context.Context, path, txlock string, timeout time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d&_txlock=%s",
		path, timeout.Milliseconds(), txlock)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	return db, nil
}

func (s *Store) Path() string { return s.path }

// Outbox is the event table committed with write units.
func (s *Store) Outbox() *Outbox { return s.outbox }

func (s *Store) Close() error {
	return errors.Join(s.reader.Close(), s.writer.Close())
}

// Ping is the readiness probe of the store.
func (s *Store) Ping(ctx context.Context) error {
	return s.writer.PingContext(ctx)
}

// Save upserts a catalog room outside any unit.
func (s *Store) Save(ctx context.Context, room rooms.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	return mapError("sqlite.rooms.save", saveRoom(ctx, s.writer, room))
}

func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	pool := s.writer
	if opts.ReadOnly {
		pool = s.reader
	}
	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, mapError("sqlite.begin", err)
	}
	u := &Unit{conn: conn, readOnly: opts.ReadOnly, defaultTimeout: s.lockTimeout}
	if !opts.ReadOnly && opts.LockTimeout > 0 && opts.LockTimeout != s.lockTimeout {
		u.custom = opts.LockTimeout
		if err := setBusyTimeout(ctx, conn, opts.LockTimeout); err != nil {
			u.release(ctx)
			return nil, mapError("sqlite.begin", err)
		}
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		u.release(ctx)
		return nil, mapError("sqlite.begin", err)
	}
	u.tx = tx
	return u, nil
}

func setBusyTimeout(ctx context.Context, conn *sql.Conn, d time.Duration) error {
	_, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", d.Milliseconds()))
	return err
}

// Unit is one transaction on a dedicated connection.
type Unit struct {
	tx             *sql.Tx
	conn           *sql.Conn
	readOnly       bool
	done           bool
	defaultTimeout time.Duration
	custom         time.Duration
}

func (u *Unit) Rooms() rooms.Catalog { return roomCatalog{q: u.tx} }

func (u *Unit) Cells() availability.CellRepository { return cellRepository{u: u} }

func (u *Unit) Blocks() availability.BlockPeriodRepository { return blockRepository{u: u} }

func (u *Unit) Rules() availability.RuleRepository { return ruleRepository{u: u} }

func (u *Unit) Reservations() availability.ReservationRepository {
	return reservationRepository{u: u}
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

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	defer u.release(ctx)
	if u.readOnly {
		return mapError("sqlite.commit", u.tx.Rollback())
	}
	return mapError("sqlite.commit", u.tx.Commit())
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.release(ctx)
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// release restores the pool busy timeout before the connection goes back.
func (u *Unit) release(ctx context.Context) {
	if u.custom > 0 {
		_ = setBusyTimeout(context.WithoutCancel(ctx), u.conn, u.defaultTimeout)
	}
	_ = u.conn.Close()
}

// mapError turns lock waits that ran out into retryable store failures.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return availability.Transient(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return availability.Transient(op, err)
	}
	return err
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
}

var _ uow.UoWFactory = (*Store)(nil)
