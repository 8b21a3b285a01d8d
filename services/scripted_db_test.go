package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// sqlStep is one statement the reminder pass is expected to run, in order.
type sqlStep struct {
	pattern *regexp.Regexp
	args    []driver.Value
	delay   time.Duration
	columns []string
	rows    [][]driver.Value
	err     error
}

// replayDB serves MySQL-only statements (advisory locks) without a server.
// It records the connection each statement ran on.
type replayDB struct {
	mu      sync.Mutex
	steps   []*sqlStep
	conns   []int64
	nextCon atomic.Int64
}

func (db *replayDB) take(connID int64, query string, args []driver.NamedValue) (*sqlStep, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) == 0 {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	step := db.steps[0]
	if !step.pattern.MatchString(query) {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	if len(step.args) != len(args) {
		return nil, fmt.Errorf("unexpected arg count for %s: got %d want %d", query, len(args), len(step.args))
	}
	for i := range args {
		if args[i].Value != step.args[i] {
			return nil, fmt.Errorf("unexpected arg %d for %s: got %v want %v", i, query, args[i].Value, step.args[i])
		}
	}
	db.steps = db.steps[1:]
	db.conns = append(db.conns, connID)
	return step, nil
}

func (db *replayDB) verifyComplete() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) != 0 {
		return fmt.Errorf("unmet expectations: %d", len(db.steps))
	}
	return nil
}

// connections returns the connection id of every statement run so far.
func (db *replayDB) connections() []int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]int64(nil), db.conns...)
}

type replayDriver struct {
	db *replayDB
}

func (d *replayDriver) Open(string) (driver.Conn, error) {
	return &replayConn{db: d.db, id: d.db.nextCon.Add(1)}, nil
}

type replayConn struct {
	db *replayDB
	id int64
}

func (c *replayConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *replayConn) Close() error { return nil }

func (c *replayConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *replayConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	step, err := c.db.take(c.id, query, args)
	if err != nil {
		return nil, err
	}
	if step.delay > 0 {
		select {
		case <-time.After(step.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if step.err != nil {
		return nil, step.err
	}
	return &replayRows{columns: step.columns, rows: step.rows}, nil
}

type replayRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *replayRows) Columns() []string { return r.columns }

func (r *replayRows) Close() error { return nil }

func (r *replayRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

// newReplayGormDB opens a MySQL-dialect gorm handle over steps. Idle
// connections are not kept, so statements that are not pinned to one
// connection land on different ones.
func newReplayGormDB(t *testing.T, steps []*sqlStep) (*gorm.DB, *replayDB) {
	t.Helper()
	state := &replayDB{steps: steps}
	driverName := fmt.Sprintf("replay_%d", time.Now().UnixNano())
	sql.Register(driverName, &replayDriver{db: state})

	sqlDB, err := sql.Open(driverName, "")
	if err != nil {
		t.Fatalf("open sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("open gorm db: %v", err)
	}
	return gormDB, state
}
