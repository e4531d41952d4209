package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("backtest run not found")

// MaxListLimit bounds ListRecentRuns.
const MaxListLimit = 100

// RunsSchema creates the backtest_runs table.
const RunsSchema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id                     UUID PRIMARY KEY,
	symbol                 TEXT NOT NULL,
	exchange               TEXT NOT NULL,
	timeframe              TEXT NOT NULL,
	short_window           INTEGER NOT NULL,
	long_window            INTEGER NOT NULL,
	initial_balance        NUMERIC(20, 2) NOT NULL,
	final_strategy_balance NUMERIC(20, 2) NOT NULL,
	final_buy_hold_balance NUMERIC(20, 2) NOT NULL,
	trade_count            INTEGER NOT NULL,
	win_rate_pct           NUMERIC(8, 2),
	avg_return_pct         NUMERIC(12, 2),
	max_drawdown_pct       NUMERIC(8, 2) NOT NULL,
	series_start           TIMESTAMPTZ NOT NULL,
	series_end             TIMESTAMPTZ NOT NULL,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at ON backtest_runs (created_at DESC);
`

const runColumns = `id, symbol, exchange, timeframe, short_window, long_window, initial_balance,
	final_strategy_balance, final_buy_hold_balance, trade_count, win_rate_pct, avg_return_pct,
	max_drawdown_pct, series_start, series_end, created_at`

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// RunRepository persists backtest summaries.
type RunRepository struct {
	pool DatabasePool
}

// NewRunRepository creates a new run repository.
func NewRunRepository(pool DatabasePool) *RunRepository {
	return &RunRepository{pool: pool}
}

// EnsureSchema creates the runs table if it does not exist.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, RunsSchema); err != nil {
		return fmt.Errorf("failed to create backtest_runs schema: %w", err)
	}
	return nil
}

// SaveRun inserts run, assigning an ID when it has none.
func (r *RunRepository) SaveRun(ctx context.Context, run *models.BacktestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO backtest_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Symbol,
		run.Exchange,
		run.Timeframe,
		run.ShortWindow,
		run.LongWindow,
		run.InitialBalance,
		run.FinalStrategyBalance,
		run.FinalBuyHoldBalance,
		run.TradeCount,
		run.WinRatePct,
		run.AvgReturnPct,
		run.MaxDrawdownPct,
		run.SeriesStart,
		run.SeriesEnd,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save backtest run: %w", err)
	}
	return nil
}

// GetRun loads one run by ID.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.BacktestRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.NewInvalidInputErrorf("id", "%q is not a valid run ID", id)
	}

	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}
	return run, nil
}

// ListRecentRuns returns the newest runs first. limit is clamped to [1, MaxListLimit].
func (r *RunRepository) ListRecentRuns(ctx context.Context, limit int) ([]models.BacktestRun, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.BacktestRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backtest runs: %w", err)
	}
	return runs, nil
}

// scanRun reads numerics as text so the same path works for pgx and mocks.
func scanRun(row pgx.Row) (*models.BacktestRun, error) {
	var (
		run                                       models.BacktestRun
		initial, finalStrategy, finalBH, drawdown string
		winRate, avgReturn                        *string
	)

	err := row.Scan(
		&run.ID,
		&run.Symbol,
		&run.Exchange,
		&run.Timeframe,
		&run.ShortWindow,
		&run.LongWindow,
		&initial,
		&finalStrategy,
		&finalBH,
		&run.TradeCount,
		&winRate,
		&avgReturn,
		&drawdown,
		&run.SeriesStart,
		&run.SeriesEnd,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if run.InitialBalance, err = decimal.NewFromString(initial); err != nil {
		return nil, fmt.Errorf("initial_balance: %w", err)
	}
	if run.FinalStrategyBalance, err = decimal.NewFromString(finalStrategy); err != nil {
		return nil, fmt.Errorf("final_strategy_balance: %w", err)
	}
	if run.FinalBuyHoldBalance, err = decimal.NewFromString(finalBH); err != nil {
		return nil, fmt.Errorf("final_buy_hold_balance: %w", err)
	}
	if run.MaxDrawdownPct, err = decimal.NewFromString(drawdown); err != nil {
		return nil, fmt.Errorf("max_drawdown_pct: %w", err)
	}
	if run.WinRatePct, err = optionalDecimal(winRate); err != nil {
		return nil, fmt.Errorf("win_rate_pct: %w", err)
	}
	if run.AvgReturnPct, err = optionalDecimal(avgReturn); err != nil {
		return nil, fmt.Errorf("avg_return_pct: %w", err)
	}
	return &run, nil
}

func optionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
