package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	models "StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/domain/service"
	"StockCast/internal/service/metrics"
	"StockCast/internal/service/ratelimit"
	"StockCast/internal/usecase"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"
	xutil "StockCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// PredictionsHandler exposes the forecasting engine over Echo.
type PredictionsHandler struct {
	logger     *xlogger.Logger
	predictor  *usecase.PredictUseCase
	batch      *usecase.BatchUseCase
	market     *usecase.MarketUseCase
	importance *usecase.ImportanceUseCase
	train      *usecase.TrainUseCase
	history    domrepo.PriceHistory
	rl         *ratelimit.Limiter
}

func NewPredictionsHandler(
	logger *xlogger.Logger,
	predictor *usecase.PredictUseCase,
	batch *usecase.BatchUseCase,
	market *usecase.MarketUseCase,
	importance *usecase.ImportanceUseCase,
	train *usecase.TrainUseCase,
) *PredictionsHandler {
	metrics.Register()
	return &PredictionsHandler{
		logger:     logger,
		predictor:  predictor,
		batch:      batch,
		market:     market,
		importance: importance,
		train:      train,
		rl:         ratelimit.New(),
	}
}

// SetHistory wires the price store health check into /healthz.
func (h *PredictionsHandler) SetHistory(ph domrepo.PriceHistory) { h.history = ph }

func (h *PredictionsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/api")
	g.GET("/predict", h.Predict)
	g.GET("/batch", h.Batch)
	g.GET("/market", h.Market)
	g.GET("/importance", h.Importance)
	g.GET("/performance", h.Performance)
	g.GET("/history", h.History)
	g.POST("/train", h.Train)
}

func (h *PredictionsHandler) Predict(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.PredictionLatency.WithLabelValues("predict").Observe(time.Since(start).Seconds())
	}()

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":predict", 10, 5) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	res, err := h.predictor.GetPrediction(c.Request().Context(), normalizeTicker(req.Ticker), req.Horizon)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Batch(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.PredictionLatency.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	}()

	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":batch", 3, 1) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	tickers := make([]string, len(req.Tickers))
	for i, t := range req.Tickers {
		tickers[i] = normalizeTicker(t)
	}

	res, err := h.batch.BatchPredict(c.Request().Context(), tickers, req.Horizon)
	if err != nil {
		return h.fail(c, "batch", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Market(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.PredictionLatency.WithLabelValues("market").Observe(time.Since(start).Seconds())
	}()

	req := &models.MarketRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":market", 3, 1) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	res, err := h.market.MarketPredictions(c.Request().Context(), req.Horizon)
	if err != nil {
		return h.fail(c, "market", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Importance(c echo.Context) error {
	req := &models.ImportanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.importance.FeatureImportance(c.Request().Context(), normalizeTicker(req.Ticker))
	if err != nil {
		return h.fail(c, "importance", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Train(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.PredictionLatency.WithLabelValues("train").Observe(time.Since(start).Seconds())
	}()

	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// training is expensive; keep the per-client budget tight
	if !h.rl.Allow(c.RealIP()+":train", 2, 0.2) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	report, err := h.train.Train(c.Request().Context(), normalizeTicker(req.Ticker))
	if err != nil {
		return h.fail(c, "train", err)
	}
	return xhttp.SuccessResponse(c, report)
}

// Performance reports the held-out MSE/R2 of the ticker's last training run.
func (h *PredictionsHandler) Performance(c echo.Context) error {
	req := &models.ImportanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.train.Performance(normalizeTicker(req.Ticker))
	if err != nil {
		return h.fail(c, "performance", err)
	}
	return xhttp.SuccessResponse(c, report)
}

// History returns the stored daily candles behind a prediction. Only
// available when a price store is wired; synthetic-only deployments 404.
func (h *PredictionsHandler) History(c echo.Context) error {
	ticker := normalizeTicker(c.QueryParam("ticker"))
	if ticker == "" {
		return xhttp.BadRequestResponse(c, "ticker is required")
	}
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no price store configured"))
	}

	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.AddDate(0, -3, 0))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	from, to = xutil.AlignDayRange(from, to)

	candles, err := h.history.GetCandles(c.Request().Context(), ticker, from, to)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ticker":  ticker,
		"from":    from,
		"to":      to,
		"candles": candles,
	})
}

func (h *PredictionsHandler) Healthz(c echo.Context) error {
	if h.history != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.history.Health(ctx); err != nil {
			h.logger.Warn("healthz price store degraded", xlogger.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"reason": "price store unreachable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps domain errors onto the AppError taxonomy.
func (h *PredictionsHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.PredictionErrors.WithLabelValues(endpoint).Inc()
	h.logger.Error(endpoint+" usecase error", xlogger.Error(err))

	switch {
	case errors.Is(err, service.ErrInvalidHorizon):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	case errors.Is(err, service.ErrModelUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()).WithError(err))
	case errors.Is(err, service.ErrInsufficientData):
		appErr := xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "", err.Error(), http.StatusUnprocessableEntity)
		return xhttp.AppErrorResponse(c, appErr.WithError(err))
	default:
		return xhttp.AppErrorResponse(c, err)
	}
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
