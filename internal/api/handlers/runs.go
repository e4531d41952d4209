package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

const defaultRunsLimit = 20

// RunReader loads persisted backtest runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*models.BacktestRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]models.BacktestRun, error)
}

type RunsHandler struct {
	runs RunReader
}

type RunsResponse struct {
	Runs  []models.BacktestRun `json:"runs"`
	Count int                  `json:"count"`
}

func NewRunsHandler(runs RunReader) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// ListRuns returns the most recent runs, newest first.
func (h *RunsHandler) ListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, utils.NewInvalidInputErrorf("limit", "%q is not a number", raw))
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRecentRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// GetRun returns one run by ID.
func (h *RunsHandler) GetRun(c *gin.Context) {
	run, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
