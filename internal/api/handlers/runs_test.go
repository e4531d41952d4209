package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/crossover-go/internal/database"
	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

type stubRunReader struct {
	runs      []models.BacktestRun
	err       error
	lastLimit int
}

func (s *stubRunReader) GetRun(_ context.Context, id string) (*models.BacktestRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.runs {
		if s.runs[i].ID == id {
			return &s.runs[i], nil
		}
	}
	return nil, database.ErrRunNotFound
}

func (s *stubRunReader) ListRecentRuns(_ context.Context, limit int) ([]models.BacktestRun, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.runs, nil
}

func setupRunsRouter(reader RunReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewRunsHandler(reader)
	router := gin.New()
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:id", h.GetRun)
	return router
}

func sampleRuns() []models.BacktestRun {
	return []models.BacktestRun{
		{ID: "a", Symbol: "BTC/USDT", FinalStrategyBalance: decimal.RequireFromString("11466.67")},
		{ID: "b", Symbol: "ETH/USDT", FinalStrategyBalance: decimal.RequireFromString("9800")},
	}
}

func TestRunsHandler_ListRuns(t *testing.T) {
	reader := &stubRunReader{runs: sampleRuns()}
	router := setupRunsRouter(reader)

	w := get(router, "/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultRunsLimit, reader.lastLimit)

	var resp RunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "BTC/USDT", resp.Runs[0].Symbol)

	get(router, "/runs?limit=5")
	assert.Equal(t, 5, reader.lastLimit)
}

func TestRunsHandler_ListRuns_BadLimit(t *testing.T) {
	router := setupRunsRouter(&stubRunReader{})

	w := get(router, "/runs?limit=ten")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunsHandler_ListRuns_StoreError(t *testing.T) {
	router := setupRunsRouter(&stubRunReader{err: errors.New("connection refused")})

	w := get(router, "/runs")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRunsHandler_GetRun(t *testing.T) {
	router := setupRunsRouter(&stubRunReader{runs: sampleRuns()})

	w := get(router, "/runs/b")
	require.Equal(t, http.StatusOK, w.Code)

	var run models.BacktestRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "ETH/USDT", run.Symbol)
	assert.True(t, run.FinalStrategyBalance.Equal(decimal.NewFromInt(9800)))
}

func TestRunsHandler_GetRun_Errors(t *testing.T) {
	w := get(setupRunsRouter(&stubRunReader{runs: sampleRuns()}), "/runs/zzz")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(setupRunsRouter(&stubRunReader{err: utils.NewInvalidInputError("id", "bad")}), "/runs/zzz")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
