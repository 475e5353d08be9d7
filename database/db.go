// Package database implements the persistence façade: the only component
// that touches the embedded SQL engine. It owns one connection per database,
// bridges wire values to SQL parameters and rows, and persists the named-SQL
// policy in a metadata table.
package database

import (
	"context"
	stdsql "database/sql"
	stddriver "database/sql/driver"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/ryanpbrewster/ezdb/driver"
	"github.com/ryanpbrewster/ezdb/ezerr"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/ryanpbrewster/ezdb/policy"
	"github.com/ryanpbrewster/ezdb/sqlvalue"
	"github.com/ryanpbrewster/ezdb/tokens"
	"github.com/ryanpbrewster/ezdb/utils"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// metadataSchema is unconditionally applied on every open.
const metadataSchema = `CREATE TABLE IF NOT EXISTS __ezdb_metadata__ (
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	raw_sql TEXT NOT NULL,
	PRIMARY KEY (type, name)
)`

// DB is the persistence façade for one database address. It owns exactly one
// SQL connection.
type DB struct {
	sqlx *sqlx.DB

	address   tokens.DatabaseAddress
	logger    *logging.Logger
	interrupt *driver.InterruptHandle
}

// Factory materialises a *DB for a database address the first time it is
// referenced. The router calls Open at most once per address.
type Factory interface {
	Open(ctx context.Context, address tokens.DatabaseAddress) (*DB, error)
}

// InMemoryFactory opens a fresh, ephemeral in-memory database per address.
type InMemoryFactory struct {
	Logging *logging.Logging
}

func (f InMemoryFactory) Open(ctx context.Context, address tokens.DatabaseAddress) (*DB, error) {
	// A unique, named in-memory database per address: file::memory: alone would
	// give every connection its own anonymous database even within one address.
	dsn := "file:" + address.Filename() + "?mode=memory&cache=shared"
	return open(ctx, dsn, address, f.Logging)
}

// FileSystemFactory opens (or creates) a file at Dir/{address.Filename()}.
// A second Open of the same address returns a connection to the same file.
type FileSystemFactory struct {
	Dir     string
	Logging *logging.Logging
}

func (f FileSystemFactory) Open(ctx context.Context, address tokens.DatabaseAddress) (*DB, error) {
	dsn := filepath.Join(f.Dir, address.Filename())
	return open(ctx, dsn, address, f.Logging)
}

func open(ctx context.Context, dsn string, address tokens.DatabaseAddress, lg *logging.Logging) (*DB, error) {
	logger := lg.GetLogger("database").GetChildLogger(address.String(),
		zap.String("project", address.ProjectId.String()),
		zap.String("database", address.DatabaseId.String()))

	// Resolve the registered modernc.org/sqlite driver via a throwaway handle so
	// we can rewrap its Connector for retry-on-open.
	probe, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "can't open database file")
	}
	base := probe.Driver()
	_ = probe.Close()

	var sqlDB *stdsql.DB
	if ctxDriver, ok := base.(stddriver.DriverContext); ok {
		connector, err := ctxDriver.OpenConnector(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "can't open database file")
		}
		sqlDB = stdsql.OpenDB(driver.NewConnector(connector, logger))
	} else {
		sqlDB, err = stdsql.Open("sqlite", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "can't open database file")
		}
	}

	// Exactly one connection per database: no per-database connection pooling.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	// "sqlite3" is not the driver actually dispatching (that's "sqlite", wired
	// above); it only selects sqlx's QUESTION-mark named-parameter bind style.
	sqlxDB := sqlx.NewDb(sqlDB, "sqlite3")

	if _, err := sqlxDB.ExecContext(ctx, metadataSchema); err != nil {
		_ = sqlxDB.Close()
		return nil, errors.Wrap(err, "can't initialize metadata table")
	}

	return &DB{
		sqlx:      sqlxDB,
		address:   address,
		logger:    logger,
		interrupt: &driver.InterruptHandle{},
	}, nil
}

// InterruptHandle returns the token used to cancel whatever statement is
// currently executing against this connection.
func (db *DB) InterruptHandle() *driver.InterruptHandle {
	return db.interrupt
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.sqlx.Close()
}

// QueryRaw prepares sql with no parameters and returns every row.
func (db *DB) QueryRaw(ctx context.Context, rawSQL string) ([]Row, error) {
	ctx, release := db.interrupt.Track(ctx)
	defer release()

	rows, err := db.sqlx.QueryContext(ctx, rawSQL)
	if err != nil {
		return nil, mapEngineError(ctx, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, mapEngineError(ctx, err)
	}

	return result, mapEngineError(ctx, rows.Err())
}

// MutateRaw executes a single statement with no parameters and no row output.
func (db *DB) MutateRaw(ctx context.Context, rawSQL string) error {
	ctx, release := db.interrupt.Track(ctx)
	defer release()

	_, err := db.sqlx.ExecContext(ctx, rawSQL)
	return mapEngineError(ctx, err)
}

// QueryNamed resolves name from the policy's queries and binds params by name.
func (db *DB) QueryNamed(ctx context.Context, name string, params map[string]interface{}) ([]Row, error) {
	ctx, release := db.interrupt.Track(ctx)
	defer release()

	tx, err := db.sqlx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, mapEngineError(ctx, err)
	}
	defer func() { _ = tx.Rollback() }()

	rawSQL, err := lookupNamedSQL(ctx, tx, policy.Query, name)
	if err != nil {
		return nil, err
	}

	bindParams, err := bridgeParams(params)
	if err != nil {
		return nil, err
	}

	rows, err := tx.NamedQuery(rawSQL, bindParams)
	if err != nil {
		return nil, mapEngineError(ctx, err)
	}
	result, err := scanRows(rows)
	_ = rows.Close()
	if err != nil {
		return nil, mapEngineError(ctx, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapEngineError(ctx, err)
	}

	return result, nil
}

// MutateNamed resolves name from the policy's mutations and binds params by name.
func (db *DB) MutateNamed(ctx context.Context, name string, params map[string]interface{}) error {
	ctx, release := db.interrupt.Track(ctx)
	defer release()

	tx, err := db.sqlx.BeginTxx(ctx, nil)
	if err != nil {
		return mapEngineError(ctx, err)
	}
	defer func() { _ = tx.Rollback() }()

	rawSQL, err := lookupNamedSQL(ctx, tx, policy.Mutation, name)
	if err != nil {
		return err
	}

	bindParams, err := bridgeParams(params)
	if err != nil {
		return err
	}

	if _, err := tx.NamedExecContext(ctx, rawSQL, bindParams); err != nil {
		return mapEngineError(ctx, err)
	}

	return mapEngineError(ctx, tx.Commit())
}

// FetchPolicy reads both kinds of named SQL out of the metadata table.
func (db *DB) FetchPolicy(ctx context.Context) (policy.Policy, error) {
	ctx, release := db.interrupt.Track(ctx)
	defer release()

	rows, err := db.sqlx.QueryContext(ctx, `SELECT type, name, raw_sql FROM __ezdb_metadata__`)
	if err != nil {
		return policy.Policy{}, mapEngineError(ctx, err)
	}
	defer rows.Close()

	var p policy.Policy
	for rows.Next() {
		var kind, name, rawSQL string
		if err := rows.Scan(&kind, &name, &rawSQL); err != nil {
			return policy.Policy{}, mapEngineError(ctx, err)
		}

		entry := policy.NamedSQL{Name: name, RawSQL: rawSQL}
		switch policy.Kind(kind) {
		case policy.Query:
			p.Queries = append(p.Queries, entry)
		case policy.Mutation:
			p.Mutations = append(p.Mutations, entry)
		}
	}

	return p, mapEngineError(ctx, rows.Err())
}

// SetPolicy replaces the entire metadata table contents in one transaction.
func (db *DB) SetPolicy(ctx context.Context, p policy.Policy) error {
	ctx, release := db.interrupt.Track(ctx)
	defer release()

	tx, err := db.sqlx.BeginTxx(ctx, nil)
	if err != nil {
		return mapEngineError(ctx, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM __ezdb_metadata__`); err != nil {
		return mapEngineError(ctx, err)
	}

	insert := func(kind policy.Kind, entries []policy.NamedSQL) error {
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO __ezdb_metadata__ (type, name, raw_sql) VALUES (?, ?, ?)`,
				string(kind), e.Name, e.RawSQL,
			); err != nil {
				return ezerr.Unknown(err.Error())
			}
		}
		return nil
	}

	if err := insert(policy.Query, p.Queries); err != nil {
		return err
	}
	if err := insert(policy.Mutation, p.Mutations); err != nil {
		return err
	}

	return mapEngineError(ctx, tx.Commit())
}

func lookupNamedSQL(ctx context.Context, tx *sqlx.Tx, kind policy.Kind, name string) (string, error) {
	var rawSQL string
	err := tx.GetContext(ctx, &rawSQL,
		`SELECT raw_sql FROM __ezdb_metadata__ WHERE type = ? AND name = ?`, string(kind), name)
	if errors.Is(err, stdsql.ErrNoRows) {
		return "", ezerr.NoSuchQuery(name)
	}
	if err != nil {
		return "", mapEngineError(ctx, err)
	}

	return rawSQL, nil
}

func bridgeParams(params map[string]interface{}) (map[string]interface{}, error) {
	bound := make(map[string]interface{}, len(params))
	for name, raw := range params {
		v, err := sqlvalue.FromWire(raw)
		if err != nil {
			return nil, ezerr.Unknown(err.Error())
		}
		bound[name] = v
	}

	return bound, nil
}

// scannable is satisfied by both *sqlx.Rows and *sql.Rows.
type scannable interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanRows(rows scannable) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	sortedIdx := make([]int, len(columns))
	for i := range sortedIdx {
		sortedIdx[i] = i
	}
	sort.Slice(sortedIdx, func(i, j int) bool { return columns[sortedIdx[i]] < columns[sortedIdx[j]] })

	var result []Row
	for rows.Next() {
		dest := make([]interface{}, len(columns))
		for i := range dest {
			dest[i] = new(interface{})
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for outPos, colIdx := range sortedIdx {
			value, err := sqlvalue.FromColumn(*(dest[colIdx].(*interface{})))
			if err != nil {
				return nil, err
			}
			row[outPos] = RowEntry{Name: columns[colIdx], Value: value}
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

// mapEngineError maps an error from the embedded engine onto the wire-level
// error taxonomy: context cancellation caused by our own InterruptHandle
// becomes Interrupted, everything else becomes Unknown.
func mapEngineError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if utils.IsContextCanceled(err) && ctx.Err() != nil {
		return ezerr.Interrupted
	}

	return ezerr.Unknown(err.Error())
}
