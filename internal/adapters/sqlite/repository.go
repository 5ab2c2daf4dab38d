package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"stockBacktester/internal/domain"
	"stockBacktester/internal/ports"
	"stockBacktester/internal/strategy/analytics"
)

var _ ports.RunRepository = (*Repository)(nil)

// Repository implements ports.RunRepository using SQLite.
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
		dbPath = "./data/backtests.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %v: %w", dbPath, err, ports.ErrDBConnection)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %v: %w", dbPath, err, ports.ErrDBConnection)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer keeps SQLite free of "database is locked" errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		params TEXT NOT NULL,
		symbols TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		initial_cash REAL NOT NULL,
		final_value REAL NOT NULL,
		created_at TIMESTAMP NOT NULL,
		total_return REAL NOT NULL,
		annual_return REAL NOT NULL,
		sharpe_ratio REAL NOT NULL,
		max_drawdown REAL NOT NULL,
		win_rate REAL NOT NULL,
		avg_profit REAL NOT NULL,
		avg_loss REAL NOT NULL,
		profit_factor REAL NULL, -- NULL encodes an infinite profit factor
		total_trades INTEGER NOT NULL,
		winning_trades INTEGER NOT NULL,
		losing_trades INTEGER NOT NULL,
		avg_holding_days REAL NOT NULL,
		max_consecutive_wins INTEGER NOT NULL,
		max_consecutive_losses INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		trade_date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		commission REAL NOT NULL,
		tax REAL NOT NULL,
		profit REAL NOT NULL,
		profit_rate REAL NOT NULL,
		reason TEXT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_values (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		value_date TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (run_id, value_date)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_run_seq ON trades (run_id, seq);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
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

// SaveRun stores a run, its trades and its valuation series in one transaction.
// A run without an ID is assigned a new UUID; run.ID and run.CreatedAt are updated.
func (r *Repository) SaveRun(ctx context.Context, run *ports.RunRecord, trades []domain.TradeRecord, values []domain.DailyValue) (string, error) {
	if run == nil {
		return "", fmt.Errorf("run is required: %w", ports.ErrInvalidRequest)
	}
	// Only +Inf is stored as NULL; NaN and -Inf would not survive the round trip.
	if pf := run.Metrics.ProfitFactor; math.IsNaN(pf) || math.IsInf(pf, -1) {
		return "", fmt.Errorf("profit factor %v cannot be stored: %w", pf, ports.ErrInvalidRequest)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return "", fmt.Errorf("encode params of run %s: %w", run.ID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %v: %w", err, ports.ErrDBConnection)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	m := run.Metrics
	var profitFactor sql.NullFloat64
	if !math.IsInf(m.ProfitFactor, 1) {
		profitFactor = sql.NullFloat64{Float64: m.ProfitFactor, Valid: true}
	}

	const insertRun = `
	INSERT INTO runs (id, strategy, params, symbols, start_date, end_date, initial_cash, final_value, created_at,
		total_return, annual_return, sharpe_ratio, max_drawdown, win_rate, avg_profit, avg_loss, profit_factor,
		total_trades, winning_trades, losing_trades, avg_holding_days, max_consecutive_wins, max_consecutive_losses)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insertRun,
		run.ID, run.Strategy, string(params), strings.Join(run.Symbols, ","),
		run.StartDate.Format(domain.DateLayout), run.EndDate.Format(domain.DateLayout),
		run.InitialCash, run.FinalValue, run.CreatedAt,
		m.TotalReturn, m.AnnualReturn, m.SharpeRatio, m.MaxDrawdown, m.WinRate, m.AvgProfit, m.AvgLoss, profitFactor,
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.AvgHoldingDays, m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", fmt.Errorf("run %s already exists: %w", run.ID, ports.ErrDuplicateEntry)
		}
		return "", fmt.Errorf("failed to insert run %s: %v: %w", run.ID, err, ports.ErrQueryFailed)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO trades (run_id, seq, trade_date, symbol, side, quantity, price, commission, tax, profit, profit_rate, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare trade insert: %w", err)
	}
	defer tradeStmt.Close()
	for i, t := range trades {
		var reason sql.NullString
		if t.Reason != "" {
			reason = sql.NullString{String: t.Reason, Valid: true}
		}
		_, err := tradeStmt.ExecContext(ctx, run.ID, i, t.Date.Format(domain.DateLayout), t.Symbol, string(t.Side),
			t.Quantity, t.Price, t.Commission, t.Tax, t.Profit, t.ProfitRate, reason)
		if err != nil {
			return "", fmt.Errorf("failed to insert trade %d of run %s: %v: %w", i, run.ID, err, ports.ErrQueryFailed)
		}
	}

	valueStmt, err := tx.PrepareContext(ctx, `INSERT INTO daily_values (run_id, value_date, value) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare daily value insert: %w", err)
	}
	defer valueStmt.Close()
	for _, v := range values {
		if _, err := valueStmt.ExecContext(ctx, run.ID, v.Date.Format(domain.DateLayout), v.Value); err != nil {
			return "", fmt.Errorf("failed to insert daily value of run %s: %v: %w", run.ID, err, ports.ErrQueryFailed)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run %s: %v: %w", run.ID, err, ports.ErrQueryFailed)
	}
	r.logger.Debug(ctx, "Run saved", map[string]interface{}{
		"runID":    run.ID,
		"strategy": run.Strategy,
		"trades":   len(trades),
		"days":     len(values),
	})
	return run.ID, nil
}

const selectRun = `
	SELECT id, strategy, params, symbols, start_date, end_date, initial_cash, final_value, created_at,
		total_return, annual_return, sharpe_ratio, max_drawdown, win_rate, avg_profit, avg_loss, profit_factor,
		total_trades, winning_trades, losing_trades, avg_holding_days, max_consecutive_wins, max_consecutive_losses
	FROM runs`

// GetRun retrieves a run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*ports.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first. A non-positive limit returns all runs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*ports.RunRecord, error) {
	query := selectRun + ` ORDER BY created_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*ports.RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// TradesForRun retrieves the trades of a run in execution order.
func (r *Repository) TradesForRun(ctx context.Context, id string) ([]domain.TradeRecord, error) {
	const query = `
	SELECT trade_date, symbol, side, quantity, price, commission, tax, profit, profit_rate, reason
	FROM trades
	WHERE run_id = ?
	ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades of run %s: %w", id, err)
	}
	defer rows.Close()

	trades := make([]domain.TradeRecord, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DailyValuesForRun retrieves the valuation series of a run in date order.
func (r *Repository) DailyValuesForRun(ctx context.Context, id string) ([]domain.DailyValue, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT value_date, value FROM daily_values WHERE run_id = ? ORDER BY value_date`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily values of run %s: %w", id, err)
	}
	defer rows.Close()

	values := make([]domain.DailyValue, 0)
	for rows.Next() {
		var (
			date string
			v    domain.DailyValue
		)
		if err := rows.Scan(&date, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to scan daily value row: %w", err)
		}
		if v.Date, err = domain.ParseDay(date); err != nil {
			return nil, fmt.Errorf("bad stored date %q: %w", date, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its trades and values.
func (r *Repository) DeleteRun(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*ports.RunRecord, error) {
	var (
		run                ports.RunRecord
		params, symbols    string
		startDate, endDate string
		profitFactor       sql.NullFloat64
		m                  analytics.Metrics
	)
	err := s.Scan(&run.ID, &run.Strategy, &params, &symbols, &startDate, &endDate,
		&run.InitialCash, &run.FinalValue, &run.CreatedAt,
		&m.TotalReturn, &m.AnnualReturn, &m.SharpeRatio, &m.MaxDrawdown, &m.WinRate, &m.AvgProfit, &m.AvgLoss, &profitFactor,
		&m.TotalTrades, &m.WinningTrades, &m.LosingTrades, &m.AvgHoldingDays, &m.MaxConsecutiveWins, &m.MaxConsecutiveLosses)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}

	if profitFactor.Valid {
		m.ProfitFactor = profitFactor.Float64
	} else {
		m.ProfitFactor = math.Inf(1)
	}
	run.Metrics = m

	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("decode params of run %s: %w", run.ID, err)
	}
	if symbols != "" {
		run.Symbols = strings.Split(symbols, ",")
	}
	if run.StartDate, err = domain.ParseDay(startDate); err != nil {
		return nil, err
	}
	if run.EndDate, err = domain.ParseDay(endDate); err != nil {
		return nil, err
	}
	return &run, nil
}

func scanTrade(s scanner) (domain.TradeRecord, error) {
	var (
		t      domain.TradeRecord
		date   string
		side   string
		reason sql.NullString
	)
	err := s.Scan(&date, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Commission, &t.Tax, &t.Profit, &t.ProfitRate, &reason)
	if err != nil {
		return t, err
	}
	if t.Date, err = domain.ParseDay(date); err != nil {
		return t, err
	}
	t.Side = domain.Side(side)
	if reason.Valid {
		t.Reason = reason.String
	}
	return t, nil
}
