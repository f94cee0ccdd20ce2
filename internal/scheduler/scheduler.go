// Package scheduler runs the periodic background work: pre-warming the
// market summary so the hour-bucket cache stays hot, and sweeping the
// watchlist for retrains so models keep up with fresh history.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"StockCast/internal/usecase"
	"StockCast/pkg/logger"
)

// Config holds the cron expressions for the background jobs. Empty
// expressions disable the corresponding job.
type Config struct {
	PrewarmCron string `yaml:"prewarm_cron"`
	RetrainCron string `yaml:"retrain_cron"`
	Horizon     int    `yaml:"horizon"`
	JobTimeout  time.Duration `yaml:"job_timeout"`
}

// Scheduler manages the cron tasks.
type Scheduler struct {
	cron    *cron.Cron
	market  *usecase.MarketUseCase
	train   *usecase.TrainUseCase
	tickers []string
	cfg     Config
	log     *logger.Logger
}

func New(market *usecase.MarketUseCase, train *usecase.TrainUseCase, tickers []string, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 5
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if len(tickers) == 0 {
		tickers = usecase.DefaultWatchlist
	}
	return &Scheduler{
		cron:    cron.New(),
		market:  market,
		train:   train,
		tickers: tickers,
		cfg:     cfg,
		log:     log,
	}
}

// Register adds the configured jobs to the cron schedule.
func (s *Scheduler) Register() error {
	if s.cfg.PrewarmCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.PrewarmCron, s.prewarmMarket); err != nil {
			return fmt.Errorf("register prewarm job: %w", err)
		}
	}
	if s.cfg.RetrainCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.RetrainCron, s.retrainWatchlist); err != nil {
			return fmt.Errorf("register retrain job: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started",
		logger.String("prewarm_cron", s.cfg.PrewarmCron),
		logger.String("retrain_cron", s.cfg.RetrainCron))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// prewarmMarket recomputes the watchlist summary, filling the hour-bucket
// prediction cache before user traffic asks for it.
func (s *Scheduler) prewarmMarket() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	sum, err := s.market.MarketPredictions(ctx, s.cfg.Horizon)
	if err != nil {
		s.log.Error("market prewarm failed", logger.Error(err))
		return
	}
	s.log.Info("market prewarm done",
		logger.String("sentiment", sum.MarketSentiment),
		logger.Int("tickers", len(sum.TopPredictions)),
		logger.Duration("duration", time.Since(start)))
}

// retrainWatchlist refreshes every watchlist model. Tickers that still lack
// enough history are skipped, not failed.
func (s *Scheduler) retrainWatchlist() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	trained := 0
	for _, ticker := range s.tickers {
		if ctx.Err() != nil {
			s.log.Warn("retrain sweep timed out", logger.Int("trained", trained))
			return
		}
		if _, err := s.train.Train(ctx, ticker); err != nil {
			s.log.Warn("retrain skipped", logger.String("ticker", ticker), logger.Error(err))
			continue
		}
		trained++
	}
	s.log.Info("retrain sweep done",
		logger.Int("trained", trained),
		logger.Int("watchlist", len(s.tickers)),
		logger.Duration("duration", time.Since(start)))
}
