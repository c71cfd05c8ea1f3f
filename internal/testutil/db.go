// Package testutil provides shared helpers for service tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
)

// StubDB returns a *sql.DB whose transactions begin, commit, and roll back
// without a real database. Tests that drive fake stores through
// store.RunInTransaction use it so transactional service paths can run
// without Postgres. Any attempt to actually execute SQL fails.
func StubDB() *sql.DB {
	return sql.OpenDB(stubConnector{})
}

type stubConnector struct{}

func (stubConnector) Connect(context.Context) (driver.Conn, error) { return stubConn{}, nil }
func (stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub connection cannot execute SQL")
}
func (stubConn) Close() error              { return nil }
func (stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }
