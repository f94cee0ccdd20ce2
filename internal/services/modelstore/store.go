// Package modelstore owns the per-ticker model lifecycle: training on
// feature matrices, persistence as JSON blobs, and cached in-memory reuse.
// All mutation for a ticker is serialized through a per-ticker lock, so
// concurrent requests for the same ticker train at most once.
package modelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/repository"
	"StockCast/internal/domain/service"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forest"
	"StockCast/pkg/logger"
)

const (
	// minFeatureRows gates training on the raw feature matrix length.
	minFeatureRows = 50
	// minAlignedRows gates training on feature rows that carry a target.
	minAlignedRows = 30

	trainFraction = 0.8
)

// Entry is a trained, ready-to-predict model pair for one ticker.
type Entry struct {
	Forest    *forest.Forest
	Scaler    *forest.Scaler
	TrainedAt time.Time
}

// modelBlob and scalerBlob are the persisted forms. The schema version pins
// the feature layout the weights were trained against; a mismatch makes the
// blob unusable and forces a retrain.
type modelBlob struct {
	SchemaVersion int            `json:"schema_version"`
	Model         *forest.Forest `json:"model"`
}

type scalerBlob struct {
	SchemaVersion int            `json:"schema_version"`
	Scaler        *forest.Scaler `json:"scaler"`
}

// Store trains, persists and serves per-ticker models.
type Store struct {
	eng     *features.Engineer
	blobs   repository.ModelBlobStore
	metrics repository.Metrics
	cfg     forest.Config
	log     *logger.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
	reports map[string]*models.TrainingReport

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewStore(eng *features.Engineer, blobs repository.ModelBlobStore, metrics repository.Metrics, cfg forest.Config, log *logger.Logger) *Store {
	return &Store{
		eng:     eng,
		blobs:   blobs,
		metrics: metrics,
		cfg:     cfg,
		log:     log,
		entries: make(map[string]*Entry),
		reports: make(map[string]*models.TrainingReport),
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing all model work for one ticker.
func (s *Store) lockFor(ticker string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[ticker]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ticker] = l
	}
	return l
}

func modelKey(ticker string) string  { return ticker + "_model.json" }
func scalerKey(ticker string) string { return ticker + "_scaler.json" }

// Ensure returns a ready model for the ticker, loading it from blob storage
// or training it from the given series if necessary. Concurrent callers for
// the same ticker block behind a single training run.
func (s *Store) Ensure(ctx context.Context, ticker string, series []models.Candle) (*Entry, error) {
	if e := s.cached(ticker); e != nil {
		return e, nil
	}

	l := s.lockFor(ticker)
	l.Lock()
	defer l.Unlock()

	// Re-check: the lock holder before us may have produced the model.
	if e := s.cached(ticker); e != nil {
		return e, nil
	}
	if e := s.load(ticker); e != nil {
		s.remember(ticker, e)
		return e, nil
	}

	e, _, err := s.train(ctx, ticker, series)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Train trains a fresh model for the ticker, replacing any existing one, and
// returns the held-out evaluation report.
func (s *Store) Train(ctx context.Context, ticker string, series []models.Candle) (*models.TrainingReport, error) {
	l := s.lockFor(ticker)
	l.Lock()
	defer l.Unlock()

	_, report, err := s.train(ctx, ticker, series)
	return report, err
}

// Get returns the model for a ticker without training: in-memory first, then
// blob storage. Missing or unusable blobs yield ErrModelUnavailable.
func (s *Store) Get(ticker string) (*Entry, error) {
	if e := s.cached(ticker); e != nil {
		return e, nil
	}

	l := s.lockFor(ticker)
	l.Lock()
	defer l.Unlock()

	if e := s.cached(ticker); e != nil {
		return e, nil
	}
	if e := s.load(ticker); e != nil {
		s.remember(ticker, e)
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", service.ErrModelUnavailable, ticker)
}

// LastReport returns the held-out evaluation of the most recent training run
// in this process. Models loaded from blobs carry no evaluation.
func (s *Store) LastReport(ticker string) (*models.TrainingReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reports[ticker]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: no training report for %s", service.ErrModelUnavailable, ticker)
}

func (s *Store) cached(ticker string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[ticker]
}

func (s *Store) remember(ticker string, e *Entry) {
	s.mu.Lock()
	s.entries[ticker] = e
	s.mu.Unlock()
}

// train runs the full pipeline under the caller-held ticker lock: feature
// extraction, target alignment, chronological split, scaling, fitting,
// held-out evaluation, and persistence. Nothing is written when the data
// gates refuse.
func (s *Store) train(ctx context.Context, ticker string, series []models.Candle) (*Entry, *models.TrainingReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	start := time.Now()

	matrix := s.eng.Compute(series)
	if matrix.Len() < minFeatureRows {
		return nil, nil, fmt.Errorf("%w: %s has %d feature rows, need %d",
			service.ErrInsufficientData, ticker, matrix.Len(), minFeatureRows)
	}

	targets := features.Targets(series)
	X := make([][]float64, 0, len(targets))
	y := make([]float64, 0, len(targets))
	for i, t := range targets {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			continue
		}
		X = append(X, matrix.Rows[i])
		y = append(y, t)
	}
	if len(X) < minAlignedRows {
		return nil, nil, fmt.Errorf("%w: %s has %d aligned rows, need %d",
			service.ErrInsufficientData, ticker, len(X), minAlignedRows)
	}

	// Chronological split: the newest slice is the held-out set. Shuffling
	// would leak future prices into training.
	trainN := int(float64(len(X)) * trainFraction)
	trainX, testX := X[:trainN], X[trainN:]
	trainY, testY := y[:trainN], y[trainN:]

	scaler := forest.FitScaler(trainX)
	model, err := forest.Train(scaler.TransformAll(trainX), trainY, s.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("modelstore: train %s: %w", ticker, err)
	}

	mse, r2 := evaluate(model, scaler, testX, testY)

	entry := &Entry{Forest: model, Scaler: scaler, TrainedAt: time.Now().UTC()}
	if err := s.persist(ticker, entry); err != nil {
		// The in-memory model still works this process; losing the blob
		// only costs a retrain after restart.
		s.log.Error("failed to persist model blobs", logger.String("ticker", ticker), logger.Error(err))
	}
	s.remember(ticker, entry)

	if s.metrics != nil {
		s.metrics.RecordTraining(ticker, mse, r2)
		s.metrics.RecordLatency("train", time.Since(start).Seconds())
	}
	s.log.Info("model trained",
		logger.String("ticker", ticker),
		logger.Int("rows", len(X)),
		logger.Int("train_rows", trainN),
		logger.Any("mse", mse),
		logger.Any("r2", r2),
		logger.Duration("duration", time.Since(start)))

	report := &models.TrainingReport{
		Ticker:    ticker,
		Rows:      len(X),
		TrainRows: trainN,
		TestRows:  len(X) - trainN,
		MSE:       mse,
		R2:        r2,
		TrainedAt: entry.TrainedAt,
	}
	s.mu.Lock()
	s.reports[ticker] = report
	s.mu.Unlock()
	return entry, report, nil
}

// evaluate computes MSE and R-squared on the held-out split. The metrics are
// informational; a poorly fitting model is still accepted.
func evaluate(model *forest.Forest, scaler *forest.Scaler, X [][]float64, y []float64) (mse, r2 float64) {
	if len(X) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var ssRes, ssTot float64
	for i, row := range X {
		p, err := model.Predict(scaler.Transform(row))
		if err != nil {
			continue
		}
		d := p - y[i]
		ssRes += d * d
		t := y[i] - mean
		ssTot += t * t
	}
	mse = ssRes / float64(len(y))
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return mse, r2
}

func (s *Store) persist(ticker string, e *Entry) error {
	mb, err := json.Marshal(modelBlob{SchemaVersion: models.FeatureSchemaVersion, Model: e.Forest})
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	sb, err := json.Marshal(scalerBlob{SchemaVersion: models.FeatureSchemaVersion, Scaler: e.Scaler})
	if err != nil {
		return fmt.Errorf("encode scaler: %w", err)
	}
	if err := s.blobs.Put(modelKey(ticker), mb); err != nil {
		return fmt.Errorf("store model blob: %w", err)
	}
	if err := s.blobs.Put(scalerKey(ticker), sb); err != nil {
		return fmt.Errorf("store scaler blob: %w", err)
	}
	return nil
}

// load restores a model pair from blob storage. Corrupt, mismatched or
// partial blobs are treated as absent so the caller falls through to a
// retrain rather than predicting with bad weights.
func (s *Store) load(ticker string) *Entry {
	if !s.blobs.Exists(modelKey(ticker)) || !s.blobs.Exists(scalerKey(ticker)) {
		return nil
	}

	raw, err := s.blobs.Get(modelKey(ticker))
	if err != nil {
		s.log.Warn("failed to read model blob", logger.String("ticker", ticker), logger.Error(err))
		return nil
	}
	var mb modelBlob
	if err := json.Unmarshal(raw, &mb); err != nil || mb.Model == nil {
		s.log.Warn("corrupt model blob, ignoring", logger.String("ticker", ticker))
		return nil
	}

	raw, err = s.blobs.Get(scalerKey(ticker))
	if err != nil {
		s.log.Warn("failed to read scaler blob", logger.String("ticker", ticker), logger.Error(err))
		return nil
	}
	var sb scalerBlob
	if err := json.Unmarshal(raw, &sb); err != nil || sb.Scaler == nil {
		s.log.Warn("corrupt scaler blob, ignoring", logger.String("ticker", ticker))
		return nil
	}

	if mb.SchemaVersion != models.FeatureSchemaVersion || sb.SchemaVersion != models.FeatureSchemaVersion {
		s.log.Warn("model blob schema mismatch, retraining required",
			logger.String("ticker", ticker),
			logger.Int("blob_version", mb.SchemaVersion),
			logger.Int("want_version", models.FeatureSchemaVersion))
		return nil
	}
	if mb.Model.NumFeatures != models.NumFeatures || sb.Scaler.NumFeatures() != models.NumFeatures {
		s.log.Warn("model blob feature count mismatch, ignoring", logger.String("ticker", ticker))
		return nil
	}
	if len(mb.Model.Trees) == 0 {
		s.log.Warn("model blob has no trees, ignoring", logger.String("ticker", ticker))
		return nil
	}

	return &Entry{Forest: mb.Model, Scaler: sb.Scaler, TrainedAt: time.Now().UTC()}
}
