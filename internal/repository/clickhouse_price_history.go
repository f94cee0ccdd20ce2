package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	pkgch "StockCast/pkg/clickhouse"
	applogger "StockCast/pkg/logger"
)

const candlesTable = "stockcast.daily_candles"

// candleColumns is the single select/scan column list; the DDL below and the
// Scan call order in both readers must stay aligned with it.
const candleColumns = "bucket, ticker, open, high, low, close, volume"

// CandlesSchema is the schema InitSchema applies at startup. It is defined
// next to the queries so the column names cannot drift apart.
var CandlesSchema = []string{
	"CREATE DATABASE IF NOT EXISTS stockcast",
	"CREATE TABLE IF NOT EXISTS " + candlesTable +
		" (bucket Date, ticker String, open Float64, high Float64, low Float64, close Float64, volume Float64)" +
		" ENGINE=ReplacingMergeTree ORDER BY (ticker, bucket)",
}

// CHPriceHistory implements PriceHistory backed by ClickHouse daily OHLCV.
type CHPriceHistory struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPriceHistory(ch *pkgch.Client) *CHPriceHistory {
	return &CHPriceHistory{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHPriceHistory) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceHistory) GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	const q = `
        SELECT ` + candleColumns + `
        FROM ` + candlesTable + `
        WHERE ticker = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, q, ticker, from, to)
	if err != nil {
		s.logErr("clickhouse get_candles query error", ticker, err)
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 512)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Ticker, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.logErr("clickhouse get_candles scan error", ticker, err)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse get_candles rows error", ticker, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_candles ok",
			applogger.String("ticker", ticker),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHPriceHistory) GetLatestNCandles(ctx context.Context, ticker string, n int) ([]models.Candle, error) {
	start := time.Now()
	const q = `
        SELECT ` + candleColumns + `
        FROM ` + candlesTable + `
        WHERE ticker = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, ticker, n)
	if err != nil {
		s.logErr("clickhouse latest_candles query error", ticker, err)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Ticker, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.logErr("clickhouse latest_candles scan error", ticker, err)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse latest_candles rows error", ticker, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_candles ok",
			applogger.String("ticker", ticker),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHPriceHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHPriceHistory) logErr(msg, ticker string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("ticker", ticker), applogger.Error(err))
	}
}
