package sql

import (
	"context"
	dbsql "database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rteval/parserd"
	"github.com/rteval/parserd/job"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Gateway implements parserd.Gateway on top of a bun database handle.
//
// Connect hands out sessions backed by dedicated connections from the
// pool, so each caller gets the exclusive ownership the daemon core
// expects. Listen subscribes through the PostgreSQL driver's
// LISTEN/NOTIFY support and is therefore only available when the handle
// uses pgdriver.
type Gateway struct {
	db *bun.DB
}

// NewGateway creates a Gateway over the provided database handle.
//
// The handle must be configured and connected; schema initialization
// (InitDB) must be completed before sessions are used.
func NewGateway(db *bun.DB) *Gateway {
	return &Gateway{
		db: db,
	}
}

// Connect opens a session over a dedicated pool connection.
//
// Connection failures wrap parserd.ErrUnavailable.
func (g *Gateway) Connect(ctx context.Context) (parserd.Session, error) {
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", parserd.ErrUnavailable, err)
	}
	return &Session{db: g.db, conn: conn}, nil
}

// Listen subscribes to the named notification channel.
func (g *Gateway) Listen(ctx context.Context, channel string) (parserd.Listener, error) {
	ln := pgdriver.NewListener(g.db)
	if err := ln.Listen(ctx, channel); err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %v", parserd.ErrUnavailable, err), ln.Close())
	}
	return &Listener{ln: ln}, nil
}

// Session implements parserd.Session over one dedicated connection.
//
// State transitions use single UPDATE statements guarded by the expected
// current status, so a row concurrently moved by another actor surfaces
// as parserd.ErrSubmissionLost instead of being silently overwritten.
//
// A dropped connection is reopened transparently and the failed
// operation retried once; every operation is a self-contained statement
// or transaction, so the retry cannot double-apply.
type Session struct {
	db   *bun.DB
	conn bun.Conn
}

// transitioned reports whether a guarded status update matched the
// submission row. A driver that cannot count affected rows is assumed
// to have matched; the status guards in the WHERE clauses keep a stale
// transition from overwriting anything either way.
func transitioned(res dbsql.Result) bool {
	n, err := res.RowsAffected()
	return err != nil || n > 0
}

func isConnErr(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// withConn runs op against the session's connection, reopening it and
// retrying once when the connection itself failed. Sessions are owned
// by a single goroutine, so swapping the connection needs no locking.
func (s *Session) withConn(ctx context.Context, op func(conn bun.Conn) error) error {
	err := op(s.conn)
	if err == nil || !isConnErr(err) {
		return err
	}
	_ = s.conn.Close()
	conn, cerr := s.db.Conn(ctx)
	if cerr != nil {
		return err
	}
	s.conn = conn
	return op(s.conn)
}

// ClaimNext selects the oldest Pending submission, transitions it to
// Claimed and returns its snapshot.
//
// The transition relies on a single UPDATE ... WHERE id IN (subquery)
// statement with RETURNING, so concurrent claimers cannot claim the same
// row twice. It returns (nil, nil) when no Pending submission exists.
func (s *Session) ClaimNext(ctx context.Context) (*job.Job, error) {
	var subs []*submissionModel
	err := s.withConn(ctx, func(conn bun.Conn) error {
		now := time.Now()
		subQuery := conn.NewSelect().
			Model((*submissionModel)(nil)).
			Column("id").
			Where("status = ?", job.Pending).
			OrderExpr("id ASC").
			Limit(1)
		subs = nil
		return conn.NewUpdate().
			Model((*submissionModel)(nil)).
			Set("status = ?", job.Claimed).
			Set("claimed_at = ?", now).
			Set("updated_at = ?", now).
			Where("id IN (?)", subQuery).
			Returning("*").
			Scan(ctx, &subs)
	})
	if err != nil {
		if errors.Is(err, dbsql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return subs[0].toJob(), nil
}

// MarkInProgress transitions a Claimed submission to InProgress.
//
// If the row is missing or no longer Claimed, parserd.ErrSubmissionLost
// is returned.
func (s *Session) MarkInProgress(ctx context.Context, submissionID int64) error {
	return s.withConn(ctx, func(conn bun.Conn) error {
		res, err := conn.NewUpdate().
			Model((*submissionModel)(nil)).
			Set("status = ?", job.InProgress).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", submissionID).
			Where("status = ?", job.Claimed).
			Exec(ctx)
		if err != nil {
			return err
		}
		if !transitioned(res) {
			return parserd.ErrSubmissionLost
		}
		return nil
	})
}

// PersistReport stores the report rows and transitions the submission to
// Succeeded in one transaction.
//
// If the submission is not InProgress at commit time, the transaction is
// rolled back and parserd.ErrSubmissionLost is returned. On any failure
// nothing is persisted, so the caller may retry.
func (s *Session) PersistReport(ctx context.Context, jb *job.Job, rows []parserd.ReportRow) error {
	return s.withConn(ctx, func(conn bun.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			models := make([]*reportRowModel, 0, len(rows))
			for _, row := range rows {
				models = append(models, &reportRowModel{
					SubmissionID: jb.SubmissionID,
					Section:      row.Section,
					Name:         row.Name,
					Value:        row.Value,
				})
			}
			if _, err := tx.NewInsert().Model(&models).Exec(ctx); err != nil {
				return errors.Join(err, tx.Rollback())
			}
		}
		res, err := tx.NewUpdate().
			Model((*submissionModel)(nil)).
			Set("status = ?", job.Succeeded).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", jb.SubmissionID).
			Where("status = ?", job.InProgress).
			Exec(ctx)
		if err != nil {
			return errors.Join(err, tx.Rollback())
		}
		if !transitioned(res) {
			return errors.Join(parserd.ErrSubmissionLost, tx.Rollback())
		}
		return tx.Commit()
	})
}

// MarkFailed transitions a non-terminal submission to Failed and records
// the reason.
func (s *Session) MarkFailed(ctx context.Context, submissionID int64, reason string) error {
	return s.finish(ctx, submissionID, job.Failed, reason)
}

// MarkRejected transitions a non-terminal submission to Rejected and
// records the reason.
func (s *Session) MarkRejected(ctx context.Context, submissionID int64, reason string) error {
	return s.finish(ctx, submissionID, job.Rejected, reason)
}

func (s *Session) finish(ctx context.Context, submissionID int64, status job.Status, reason string) error {
	return s.withConn(ctx, func(conn bun.Conn) error {
		res, err := conn.NewUpdate().
			Model((*submissionModel)(nil)).
			Set("status = ?", status).
			Set("reason = ?", reason).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", submissionID).
			Where("status NOT IN (?, ?, ?)", job.Succeeded, job.Failed, job.Rejected).
			Exec(ctx)
		if err != nil {
			return err
		}
		if !transitioned(res) {
			return parserd.ErrSubmissionLost
		}
		return nil
	})
}

// Close returns the session's connection to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}
