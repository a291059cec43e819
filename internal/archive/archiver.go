package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	txcontext "reportvault/pkg/platform/tx"
)

// TxRunner executes fn inside a database transaction. The transaction is
// carried in the context so tx-aware stores join it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

// SQLTxRunner runs transactions on a *sql.DB.
type SQLTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

func (r *SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}

// NoTxRunner executes fn directly, for in-memory stores.
type NoTxRunner struct{}

func (NoTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Archiver couples disk persistence with a database commit for permanent
// archival flows. Reserved for durable archival; regenerable on-demand
// downloads take the soft path on Service instead.
type Archiver struct {
	store   *Store
	records RecordStore
	tx      TxRunner
	logger  *slog.Logger
	now     func() time.Time
}

type ArchiverOption func(*Archiver)

func ArchiverWithLogger(logger *slog.Logger) ArchiverOption {
	return func(a *Archiver) {
		a.logger = logger
	}
}

func ArchiverWithClock(now func() time.Time) ArchiverOption {
	return func(a *Archiver) {
		a.now = now
	}
}

func NewArchiver(store *Store, records RecordStore, tx TxRunner, opts ...ArchiverOption) (*Archiver, error) {
	if store == nil || records == nil || tx == nil {
		return nil, fmt.Errorf("archive store, record store, and tx runner are required")
	}

	a := &Archiver{
		store:   store,
		records: records,
		tx:      tx,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Save persists the artifact to disk and commits its record, in that order:
// disk first, so a database row without a file cannot exist. A persist
// failure aborts before any database interaction. A commit failure rolls the
// transaction back and returns the error; the already-written file remains on
// disk as a documented orphan for the sweep to find. No distributed
// transaction spans the two.
func (a *Archiver) Save(ctx context.Context, content []byte, filename string, meta SaveMetadata) (*Record, error) {
	now := a.now().UTC()

	res, err := a.store.Persist(ctx, content, filename, meta.Format, meta.Category, meta.Delivery, now)
	if err != nil {
		return nil, fmt.Errorf("permanent archival aborted: %w", err)
	}

	rec := &Record{
		ID:              uuid.New().String(),
		ReportID:        meta.ReportID,
		Filename:        withExt(filename, meta.Format),
		FilePath:        res.AbsolutePath,
		CreatedAt:       now,
		RelatedEntityID: meta.RelatedEntityID,
		FileSizeBytes:   res.Size,
		ChecksumSHA256:  res.Checksum,
		UserID:          meta.UserID,
	}

	err = a.tx.RunInTx(ctx, func(ctx context.Context) error {
		return a.records.Insert(ctx, rec)
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "archive commit failed after disk write, file orphaned",
			"report_id", meta.ReportID,
			"path", res.AbsolutePath,
			"error", err,
		)
		return nil, fmt.Errorf("archive record commit for %s: %w", meta.ReportID, err)
	}

	a.logger.InfoContext(ctx, "report archived",
		"report_id", meta.ReportID, "path", res.AbsolutePath)
	return rec, nil
}
