package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/pipeline"
	_ "github.com/lib/pq"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RunSummary is a stored pipeline run without its rows
type RunSummary struct {
	ID           int64
	Symbol       string
	RunAt        time.Time
	Samples      int
	MAE          float64
	RMSE         float64
	MAPE         float64 // NaN when it was undefined for the run
	ForecastDays int
}

// New creates a new database connection
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	// Create PostgreSQL connection string
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS forecast_runs (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			run_at TIMESTAMP NOT NULL,
			samples INTEGER NOT NULL,
			mae DOUBLE PRECISION,
			rmse DOUBLE PRECISION,
			mape DOUBLE PRECISION,
			forecast_days INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evaluation_results (
			run_id BIGINT NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			actual DOUBLE PRECISION NOT NULL,
			predicted DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS forecast_results (
			run_id BIGINT NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			predicted_price DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, date)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// SaveRun stores a run with its evaluation and forecast rows in one transaction
func (db *DB) SaveRun(ctx context.Context, res *pipeline.Result) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var runID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO forecast_runs (symbol, run_at, samples, mae, rmse, mape, forecast_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		res.Symbol, res.RunAt, res.Metrics.Samples,
		nullable(res.Metrics.MAE), nullable(res.Metrics.RMSE), nullable(res.Metrics.MAPE),
		len(res.Forecast)).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	for _, r := range res.Evaluation {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO evaluation_results (run_id, date, actual, predicted)
			VALUES ($1, $2, $3, $4)
		`, runID, r.Date, r.Actual, r.Predicted); err != nil {
			return 0, fmt.Errorf("insert evaluation row: %w", err)
		}
	}

	for _, r := range res.Forecast {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO forecast_results (run_id, date, predicted_price)
			VALUES ($1, $2, $3)
		`, runID, r.Date, r.PredictedPrice); err != nil {
			return 0, fmt.Errorf("insert forecast row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// LatestRun retrieves the most recent run for symbol
func (db *DB) LatestRun(ctx context.Context, symbol string) (*RunSummary, error) {
	var run RunSummary
	var mae, rmse, mape sql.NullFloat64

	err := db.QueryRowContext(ctx, `
		SELECT id, symbol, run_at, samples, mae, rmse, mape, forecast_days
		FROM forecast_runs
		WHERE symbol = $1
		ORDER BY run_at DESC, id DESC
		LIMIT 1
	`, symbol).Scan(
		&run.ID, &run.Symbol, &run.RunAt, &run.Samples, &mae, &rmse, &mape, &run.ForecastDays,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No previous run
		}
		return nil, err
	}

	run.MAE, run.RMSE, run.MAPE = orNaN(mae), orNaN(rmse), orNaN(mape)
	return &run, nil
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// Name implements pipeline.Reporter
func (db *DB) Name() string {
	return "postgres"
}

// Report implements pipeline.Reporter
func (db *DB) Report(ctx context.Context, res *pipeline.Result) error {
	_, err := db.SaveRun(ctx, res)
	return err
}
