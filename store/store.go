// Package store persists the petroleum dataset in a relational database.
// The database is a disposable cache: every Rebuild drops and recreates its
// tables, so concurrent runs against the same file are not supported.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aluiziolira/petroleum-report/config"
	"github.com/aluiziolira/petroleum-report/metrics"
	"github.com/aluiziolira/petroleum-report/models"
	"github.com/aluiziolira/petroleum-report/pipeline"
	"github.com/aluiziolira/petroleum-report/report"
)

// Table names.
const (
	RawTable        = "Petroleum_Report"
	NormalizedTable = "Normalized_form"
)

// Store wraps the report database.
type Store struct {
	db      *sql.DB
	dsn     string
	dialect dialect
	cfg     *config.Config
	metrics *metrics.Metrics
}

// RebuildResult describes one rebuild.
type RebuildResult struct {
	RawRows        int
	NormalizedRows int
	Products       int
	Duration       time.Duration
}

// Open opens or creates the database named by cfg.Database. m may be nil.
func Open(cfg *config.Config, m *metrics.Metrics) (*Store, error) {
	dsn := cfg.Database
	if dsn == "" {
		return nil, fmt.Errorf("database cannot be empty")
	}

	d := dialectFor(dsn)
	if d == sqliteDialect {
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.name, err)
	}

	if d == sqliteDialect {
		// Rebuild runs in one transaction; a single connection avoids
		// SQLITE_BUSY between the pipeline workers.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	} else if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.name, err)
	}

	return &Store{db: db, dsn: dsn, dialect: d, cfg: cfg, metrics: m}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dsn
}

// DB returns the underlying database connection for advanced operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

var rawColumns = []column{
	{name: "country"},
	{name: "year"},
	{name: "petroleum_product"},
	{name: "sale"},
}

func (s *Store) rawSchema() []column {
	cols := make([]column, len(rawColumns))
	copy(cols, rawColumns)
	cols[0].sqlType = "TEXT"
	cols[1].sqlType = s.dialect.intType
	cols[2].sqlType = "TEXT"
	cols[3].sqlType = s.dialect.realType
	return cols
}

// Rebuild replaces both tables with the contents of ds in one transaction.
// Running it twice with the same dataset leaves identical tables.
func (s *Store) Rebuild(ctx context.Context, ds *models.Dataset) (*RebuildResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rebuild: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	rawRows, err := s.writeRaw(ctx, tx, ds)
	if err != nil {
		return nil, err
	}

	norm := report.Normalize(ds)
	normRows, err := s.writeNormalized(ctx, tx, norm)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rebuild: %w", err)
	}
	committed = true

	result := &RebuildResult{
		RawRows:        rawRows,
		NormalizedRows: normRows,
		Products:       len(norm.Products),
		Duration:       time.Since(start),
	}
	s.metrics.AddRows(RawTable, rawRows)
	s.metrics.AddRows(NormalizedTable, normRows)
	s.metrics.ObserveStage("store_rebuild", result.Duration)
	slog.Info("store rebuilt",
		slog.String("database", s.dsn),
		slog.Int("raw_rows", rawRows),
		slog.Int("normalized_rows", normRows),
		slog.Duration("elapsed", result.Duration),
	)
	return result, nil
}

func (s *Store) recreate(ctx context.Context, tx *sql.Tx, table string, cols []column) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.createTable(table, cols)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

func (s *Store) writeRaw(ctx context.Context, tx *sql.Tx, ds *models.Dataset) (int, error) {
	cols := s.rawSchema()
	if err := s.recreate(ctx, tx, RawTable, cols); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert(RawTable, cols))
	if err != nil {
		return 0, fmt.Errorf("prepare %s insert: %w", RawTable, err)
	}
	defer stmt.Close()

	writer := &rawWriter{ctx: ctx, stmt: stmt}
	p := pipeline.NewPipeline(ctx, writer, s.cfg)
	p.Start(s.cfg.Workers)
	if s.cfg.Verbose {
		p.StartMetricsReporting(time.Second)
	}

	var records []models.Record
	if ds != nil {
		records = ds.Records
	}
	if err := p.Process(records...); err != nil {
		p.Close()
		return 0, fmt.Errorf("queue %s rows: %w", RawTable, err)
	}
	if err := p.Close(); err != nil {
		return 0, fmt.Errorf("write %s: %w", RawTable, err)
	}
	return writer.count(), nil
}

func (s *Store) writeNormalized(ctx context.Context, tx *sql.Tx, norm *report.Normalized) (int, error) {
	cols := []column{
		{name: "country", sqlType: "TEXT"},
		{name: "year", sqlType: s.dialect.intType},
	}
	for _, name := range productColumns(norm.Columns()) {
		cols = append(cols, column{name: name, sqlType: s.dialect.realType})
	}
	if err := s.recreate(ctx, tx, NormalizedTable, cols); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert(NormalizedTable, cols))
	if err != nil {
		return 0, fmt.Errorf("prepare %s insert: %w", NormalizedTable, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, row := range norm.Rows {
		args[0] = row.Country
		args[1] = row.Year
		for i, v := range row.Sales {
			if math.IsNaN(v) {
				args[i+2] = nil
			} else {
				args[i+2] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert %s row %s/%d: %w", NormalizedTable, row.Country, row.Year, err)
		}
	}
	return len(norm.Rows), nil
}

// ReadRecords reads the raw table back in insertion order. A NULL sale reads
// as NaN.
func (s *Store) ReadRecords(ctx context.Context) (*models.Dataset, error) {
	query := fmt.Sprintf("SELECT country, year, petroleum_product, sale FROM %s ORDER BY %s",
		quoteIdent(RawTable), s.dialect.rowOrder)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", RawTable, err)
	}
	defer rows.Close()

	ds := &models.Dataset{Source: s.dsn, FetchedAt: time.Now(), Records: make([]models.Record, 0)}
	for rows.Next() {
		var r models.Record
		var sale sql.NullFloat64
		if err := rows.Scan(&r.Country, &r.Year, &r.Product, &sale); err != nil {
			return nil, fmt.Errorf("scan %s: %w", RawTable, err)
		}
		r.Sale = math.NaN()
		if sale.Valid {
			r.Sale = sale.Float64
		}
		ds.Records = append(ds.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", RawTable, err)
	}
	return ds, nil
}

// ReadNormalized reads the wide table back. NULL cells become NaN.
func (s *Store) ReadNormalized(ctx context.Context) (*models.Table, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", quoteIdent(NormalizedTable), s.dialect.rowOrder)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", NormalizedTable, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", NormalizedTable, err)
	}
	if len(cols) < 2 {
		return nil, fmt.Errorf("%s has %d columns, want at least 2", NormalizedTable, len(cols))
	}

	t := models.NewTable("normalized_form", "Normalized form", cols...)
	for rows.Next() {
		var country string
		var year int
		sales := make([]sql.NullFloat64, len(cols)-2)
		dest := make([]any, 0, len(cols))
		dest = append(dest, &country, &year)
		for i := range sales {
			dest = append(dest, &sales[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", NormalizedTable, err)
		}

		cells := make([]any, 0, len(cols))
		cells = append(cells, country, year)
		for _, v := range sales {
			if v.Valid {
				cells = append(cells, v.Float64)
			} else {
				cells = append(cells, math.NaN())
			}
		}
		t.AddRow(cells...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", NormalizedTable, err)
	}
	return t, nil
}

// rawWriter inserts pipeline batches into the raw table.
type rawWriter struct {
	ctx  context.Context
	stmt *sql.Stmt

	mu   sync.Mutex
	rows int
}

func (w *rawWriter) Write(records []models.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range records {
		var sale any = r.Sale
		if math.IsNaN(r.Sale) {
			sale = nil
		}
		if _, err := w.stmt.ExecContext(w.ctx, r.Country, r.Year, r.Product, sale); err != nil {
			return fmt.Errorf("insert %s row: %w", RawTable, err)
		}
		w.rows++
	}
	return nil
}

func (w *rawWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
