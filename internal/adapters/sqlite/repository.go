package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"klinefetch/internal/domain"
	"klinefetch/internal/ports"
	"klinefetch/internal/table"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository stores kline tables in SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/klines.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory '%s': %w: %w", filepath.Dir(dbPath), ports.ErrDBConnection, err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
	}

	// A single connection keeps writers from contending for the file lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	cfg.Logger.Info(context.Background(), "SQLite kline store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS klines (
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		open_time INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		close_time INTEGER NOT NULL,
		quote_asset_volume REAL NOT NULL,
		number_of_trades INTEGER NOT NULL,
		taker_buy_base_asset_volume REAL NOT NULL,
		taker_buy_quote_asset_volume REAL NOT NULL,
		"ignore" REAL NOT NULL,
		run_id TEXT NOT NULL,
		fetched_at TIMESTAMP NOT NULL,
		PRIMARY KEY (symbol, interval, open_time)
	);
	CREATE INDEX IF NOT EXISTS idx_klines_run_id ON klines (run_id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// tableRows holds the kline columns of a table, read by name.
type tableRows struct {
	openTime, closeTime []int64
	trades              []int32
	floats              [][]float64 // in floatFields order
}

// floatFields are the f64 kline columns in insert order.
var floatFields = []string{
	domain.FieldOpen,
	domain.FieldHigh,
	domain.FieldLow,
	domain.FieldClose,
	domain.FieldVolume,
	domain.FieldQuoteAssetVolume,
	domain.FieldTakerBuyBaseAssetVolume,
	domain.FieldTakerBuyQuoteAssetVolume,
	domain.FieldIgnore,
}

func readTable(t *table.Table) (*tableRows, error) {
	rows := &tableRows{floats: make([][]float64, len(floatFields))}
	var err error
	if rows.openTime, err = t.Int64s(domain.FieldOpenTime); err != nil {
		return nil, err
	}
	if rows.closeTime, err = t.Int64s(domain.FieldCloseTime); err != nil {
		return nil, err
	}
	if rows.trades, err = t.Int32s(domain.FieldNumberOfTrades); err != nil {
		return nil, err
	}
	for i, name := range floatFields {
		if rows.floats[i], err = t.Float64s(name); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// SaveTable upserts every row of t in a single transaction and returns the
// number of rows written. Rows already stored for the same open time are
// replaced.
func (r *Repository) SaveTable(ctx context.Context, symbol, interval, runID string, t *table.Table) (int, error) {
	const query = `
	INSERT OR REPLACE INTO klines (symbol, interval, open_time, open, high, low, close, volume,
	                               close_time, quote_asset_volume, number_of_trades,
	                               taker_buy_base_asset_volume, taker_buy_quote_asset_volume, "ignore",
	                               run_id, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	cols, err := readTable(t)
	if err != nil {
		return 0, fmt.Errorf("table for %s %s is not a kline table: %w", symbol, interval, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w: %w", ports.ErrQueryFailed, err)
	}
	defer tx.Rollback() // no-op after Commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare kline insert: %w: %w", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	fetchedAt := time.Now().UTC()
	f := cols.floats
	for i := 0; i < t.Height(); i++ {
		_, err := stmt.ExecContext(ctx,
			symbol, interval, cols.openTime[i],
			f[0][i], f[1][i], f[2][i], f[3][i], f[4][i],
			cols.closeTime[i], f[5][i], cols.trades[i],
			f[6][i], f[7][i], f[8][i],
			runID, fetchedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert kline %s %s open_time=%d: %w: %w", symbol, interval, cols.openTime[i], ports.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit klines for %s %s: %w: %w", symbol, interval, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Klines stored", map[string]interface{}{"symbol": symbol, "interval": interval, "rows": t.Height(), "runID": runID})
	return t.Height(), nil
}

// CountKlines returns how many klines are stored for the symbol/interval pair.
func (r *Repository) CountKlines(ctx context.Context, symbol, interval string) (int, error) {
	const query = `SELECT COUNT(*) FROM klines WHERE symbol = ? AND interval = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, symbol, interval).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count klines for %s %s: %w: %w", symbol, interval, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// LoadKlines returns the stored klines for the symbol/interval pair ordered by open time.
func (r *Repository) LoadKlines(ctx context.Context, symbol, interval string) ([]domain.Kline, error) {
	const query = `
	SELECT open_time, open, high, low, close, volume, close_time, quote_asset_volume,
	       number_of_trades, taker_buy_base_asset_volume, taker_buy_quote_asset_volume, "ignore"
	FROM klines
	WHERE symbol = ? AND interval = ?
	ORDER BY open_time ASC`

	rows, err := r.db.QueryContext(ctx, query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to query klines for %s %s: %w: %w", symbol, interval, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	klines := make([]domain.Kline, 0)
	for rows.Next() {
		var k domain.Kline
		err := rows.Scan(&k.OpenTime, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume, &k.CloseTime,
			&k.QuoteAssetVolume, &k.NumberOfTrades, &k.TakerBuyBaseAssetVolume, &k.TakerBuyQuoteAssetVolume, &k.Ignore)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kline row: %w: %w", ports.ErrQueryFailed, err)
		}
		klines = append(klines, k)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kline rows: %w", err)
	}
	return klines, nil
}
