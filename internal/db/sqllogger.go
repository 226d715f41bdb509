package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// NewLoggingConnector wraps drv so every statement run through
// sql.OpenDB(connector) is logged at debug level with its arguments,
// elapsed time and error. A nil logger means slog.Default().
func NewLoggingConnector(drv driver.Driver, dsn string, logger *slog.Logger) (driver.Connector, error) {
	if drv == nil {
		return nil, errors.New("sql log: nil driver")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &statementLogger{drv: drv, dsn: dsn, log: logger}, nil
}

type statementLogger struct {
	drv driver.Driver
	dsn string
	log *slog.Logger
}

func (l *statementLogger) Driver() driver.Driver { return l.drv }

func (l *statementLogger) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.log.Debug("sql conn open")
	return &loggedConn{Conn: conn, log: l.log}, nil
}

func (l *statementLogger) open(ctx context.Context) (driver.Conn, error) {
	dc, ok := l.drv.(driver.DriverContext)
	if !ok {
		return l.drv.Open(l.dsn)
	}
	inner, err := dc.OpenConnector(l.dsn)
	if err != nil {
		return nil, err
	}
	return inner.Connect(ctx)
}

// loggedConn embeds the driver connection; only the optional interfaces
// the pool probes for are forwarded explicitly.
type loggedConn struct {
	driver.Conn
	log *slog.Logger
}

func (c *loggedConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *loggedConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if p, ok := c.Conn.(driver.ConnPrepareContext); ok {
		stmt, err = p.PrepareContext(ctx, query)
	} else {
		stmt, err = c.Conn.Prepare(query)
	}
	if err != nil {
		c.log.Debug("sql prepare failed", "sql", query, "error", err)
		return nil, err
	}
	return &loggedStmt{Stmt: stmt, query: query, log: c.log}, nil
}

func (c *loggedConn) Close() error {
	c.log.Debug("sql conn close")
	return c.Conn.Close()
}

func (c *loggedConn) Ping(ctx context.Context) error {
	if p, ok := c.Conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *loggedConn) ResetSession(ctx context.Context) error {
	if r, ok := c.Conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *loggedConn) CheckNamedValue(nv *driver.NamedValue) error {
	if v, ok := c.Conn.(driver.NamedValueChecker); ok {
		return v.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

func (c *loggedConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	return c.Conn.Begin() //nolint:staticcheck // driver lacks ConnBeginTx
}

type loggedStmt struct {
	driver.Stmt
	query string
	log   *slog.Logger
}

func (s *loggedStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

func (s *loggedStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		res driver.Result
		err error
	)
	if e, ok := s.Stmt.(driver.StmtExecContext); ok {
		res, err = e.ExecContext(ctx, args)
	} else {
		res, err = s.Stmt.Exec(values(args)) //nolint:staticcheck // driver lacks StmtExecContext
	}
	s.record(ctx, "exec", args, start, err)
	return res, err
}

func (s *loggedStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

func (s *loggedStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if q, ok := s.Stmt.(driver.StmtQueryContext); ok {
		rows, err = q.QueryContext(ctx, args)
	} else {
		rows, err = s.Stmt.Query(values(args)) //nolint:staticcheck // driver lacks StmtQueryContext
	}
	s.record(ctx, "query", args, start, err)
	return rows, err
}

func (s *loggedStmt) record(ctx context.Context, op string, args []driver.NamedValue, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("sql", s.query),
		slog.Any("args", formatArgs(args)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.log.LogAttrs(ctx, slog.LevelDebug, "sql", attrs...)
}

func named(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

func values(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}

// formatArgs renders NULL for nil and text for []byte so log lines stay
// readable for both sqlite drivers and pgx.
func formatArgs(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		var s string
		switch v := a.Value.(type) {
		case nil:
			s = "NULL"
		case []byte:
			s = string(v)
		default:
			s = fmt.Sprint(v)
		}
		if a.Name != "" {
			s = a.Name + "=" + s
		}
		out[i] = s
	}
	return out
}
