package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"StockCast/internal/domain/models"
	applogger "StockCast/pkg/logger"
)

// SQLiteRecorder appends finished predictions and market summaries to a
// local audit database. Headline numbers get their own columns for ad-hoc
// querying; the full payload rides along as JSON.
type SQLiteRecorder struct {
	db *sql.DB
	l  *applogger.Logger
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the audit database and runs
// migrations.
func NewSQLiteRecorder(dbPath string, l *applogger.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so audit reads never block the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, l: l}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if l != nil {
		l.Info("sqlite recorder opened", applogger.String("path", dbPath))
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			ticker         TEXT NOT NULL,
			current_price  REAL,
			horizon        INTEGER,
			overall_trend  TEXT,
			avg_confidence REAL,
			risk_score     REAL,
			fallback       INTEGER NOT NULL DEFAULT 0,
			payload        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_ticker_ts ON predictions(ticker, timestamp)`,

		`CREATE TABLE IF NOT EXISTS market_summaries (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			market_sentiment TEXT,
			bullish_stocks   INTEGER,
			bearish_stocks   INTEGER,
			neutral_stocks   INTEGER,
			avg_confidence   REAL,
			avg_risk_score   REAL,
			payload          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_ts ON market_summaries(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordPrediction(ctx context.Context, res *models.PredictionResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}

	fallback := 0
	if res.IsFallback() {
		fallback = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO predictions
			(timestamp, ticker, current_price, horizon, overall_trend, avg_confidence, risk_score, fallback, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Timestamp.Unix(),
		res.Ticker,
		res.CurrentPrice,
		len(res.Predictions),
		res.OverallTrend,
		res.AvgConfidence,
		res.RiskScore,
		fallback,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordMarketSummary(ctx context.Context, s *models.MarketSummary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode market summary: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO market_summaries
			(timestamp, market_sentiment, bullish_stocks, bearish_stocks, neutral_stocks, avg_confidence, avg_risk_score, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Timestamp.Unix(),
		s.MarketSentiment,
		s.BullishStocks,
		s.BearishStocks,
		s.NeutralStocks,
		s.AvgConfidence,
		s.AvgRiskScore,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert market summary: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
