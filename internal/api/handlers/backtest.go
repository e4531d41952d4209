package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/services"
	"github.com/irfndi/crossover-go/internal/utils"
)

// MaxEvaluatePoints bounds the size of a posted price series.
const MaxEvaluatePoints = 20000

// BacktestService is the part of services.CrossoverService the handler uses.
type BacktestService interface {
	Analyze(ctx context.Context, req models.BacktestRequest) (*models.BacktestReport, error)
	Evaluate(series models.PriceSeries, params models.StrategyParams) (*models.BacktestReport, error)
	Sweep(ctx context.Context, series models.PriceSeries, params []models.StrategyParams) ([]services.SweepResult, error)
	ApplyDefaults(params models.StrategyParams) models.StrategyParams
}

// BacktestHandler serves the backtest, signal export, evaluate and sweep endpoints.
type BacktestHandler struct {
	service BacktestService
}

// backtestQuery is the query string of the fetched-data endpoints.
type backtestQuery struct {
	Symbol       string  `form:"symbol"`
	Exchange     string  `form:"exchange"`
	Timeframe    string  `form:"timeframe"`
	LookbackDays int     `form:"lookback_days"`
	Short        int     `form:"short"`
	Long         int     `form:"long"`
	Balance      float64 `form:"balance"`
	Notify       bool    `form:"notify"`
}

func (q backtestQuery) request() models.BacktestRequest {
	return models.BacktestRequest{
		Symbol:       q.Symbol,
		Exchange:     q.Exchange,
		Timeframe:    q.Timeframe,
		LookbackDays: q.LookbackDays,
		Params: models.StrategyParams{
			ShortWindow:    q.Short,
			LongWindow:     q.Long,
			InitialBalance: q.Balance,
		},
		Notify: q.Notify,
	}
}

// PricePointInput is one posted observation.
type PricePointInput struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
}

// EvaluateRequest runs the strategy on caller-supplied prices.
type EvaluateRequest struct {
	Points []PricePointInput     `json:"points" binding:"required"`
	Params models.StrategyParams `json:"params"`
}

// SweepRequest runs several parameter sets on caller-supplied prices.
type SweepRequest struct {
	Points []PricePointInput       `json:"points" binding:"required"`
	Params []models.StrategyParams `json:"params" binding:"required"`
}

// SweepResponse lists one result per requested parameter set, in order.
type SweepResponse struct {
	Results []services.SweepResult `json:"results"`
	Count   int                    `json:"count"`
}

// NewBacktestHandler creates a BacktestHandler backed by service.
func NewBacktestHandler(service BacktestService) *BacktestHandler {
	return &BacktestHandler{service: service}
}

// GetBacktest fetches the requested series and returns the full report.
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	report, ok := h.analyze(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetSignalsCSV fetches the requested series and streams its signal table.
func (h *BacktestHandler) GetSignalsCSV(c *gin.Context) {
	report, ok := h.analyze(c)
	if !ok {
		return
	}

	filename := fmt.Sprintf("signals_%s_%d_%d.csv",
		strings.ReplaceAll(report.Symbol, "/", "-"), report.Params.ShortWindow, report.Params.LongWindow)

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := services.WriteSignalsCSV(c.Writer, report.Signals); err != nil {
		_ = c.Error(err)
	}
}

func (h *BacktestHandler) analyze(c *gin.Context) (*models.BacktestReport, bool) {
	var q backtestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, utils.NewInvalidInputError("query", err.Error()))
		return nil, false
	}

	report, err := h.service.Analyze(c.Request.Context(), q.request())
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return report, true
}

// Evaluate runs the strategy on the posted series.
func (h *BacktestHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewInvalidInputError("body", err.Error()))
		return
	}

	series, err := toSeries(req.Points)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.service.Evaluate(series, h.service.ApplyDefaults(req.Params))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Sweep evaluates every posted parameter set against the posted series.
func (h *BacktestHandler) Sweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewInvalidInputError("body", err.Error()))
		return
	}

	series, err := toSeries(req.Points)
	if err != nil {
		respondError(c, err)
		return
	}

	params := make([]models.StrategyParams, len(req.Params))
	for i, p := range req.Params {
		params[i] = h.service.ApplyDefaults(p)
	}

	results, err := h.service.Sweep(c.Request.Context(), series, params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SweepResponse{Results: results, Count: len(results)})
}

func toSeries(input []PricePointInput) (models.PriceSeries, error) {
	if len(input) > MaxEvaluatePoints {
		return models.PriceSeries{}, utils.NewInvalidInputErrorf("points", "at most %d points are allowed, got %d", MaxEvaluatePoints, len(input))
	}

	points := make([]models.PricePoint, len(input))
	for i, p := range input {
		points[i] = models.PricePoint{Timestamp: p.Timestamp.UTC(), Close: p.Close}
	}
	return models.NewPriceSeries(points)
}
