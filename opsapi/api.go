// Package opsapi serves the engine's introspection and control surface over
// HTTP: tool listing and search, execution, batches, the active attempt
// table, cancellation, history and per-tool statistics.
package opsapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonwraymond/toolengine/batch"
	"github.com/jonwraymond/toolengine/exec"
	"github.com/jonwraymond/toolengine/monitor"
	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/tool"
	"github.com/jonwraymond/toolengine/toolerr"
)

// HistoryStore serves durable history, e.g. a sqlitestore.Store.
type HistoryStore interface {
	List(ctx context.Context, f monitor.Filter) ([]monitor.ExecutionRecord, error)
}

// Options configures the API.
type Options struct {
	// Store answers history requests with source=durable when set.
	Store HistoryStore

	// Logger is an optional logger for observability.
	Logger telemetry.Logger
}

type api struct {
	exec   *exec.Exec
	store  HistoryStore
	logger telemetry.Logger
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  tool.Schema `json:"parameters"`
}

// BatchRequest is the body of POST /batch.
type BatchRequest struct {
	Invocations    []exec.BatchInvocation `json:"invocations" binding:"required"`
	MaxConcurrency int                    `json:"maxConcurrency"`
	TaskTimeoutMs  int64                  `json:"taskTimeoutMs"`
	StopOnError    bool                   `json:"stopOnError"`
}

// BatchResult is one entry of a batch response.
type BatchResult struct {
	ID         string       `json:"id"`
	Succeeded  bool         `json:"succeeded"`
	Outcome    tool.Outcome `json:"outcome"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"durationMs"`
}

// BatchResponse is the body returned by POST /batch.
type BatchResponse struct {
	Results []BatchResult `json:"results"`
	Summary batch.Summary `json:"summary"`
}

// StatsResponse is the body returned by GET /stats.
type StatsResponse struct {
	Tools  []monitor.ToolStats      `json:"tools"`
	Errors map[toolerr.Category]int `json:"errors"`
}

// NewRouter builds the HTTP handler for e.
func NewRouter(e *exec.Exec, opts Options) *gin.Engine {
	a := &api{exec: e, store: opts.Store, logger: opts.Logger}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "tools": e.Registry().Len()})
	})
	router.GET("/tools", a.listTools)
	router.GET("/tools/search", a.searchTools)
	router.POST("/execute", a.execute)
	router.POST("/batch", a.runBatch)
	router.GET("/executions/active", a.active)
	router.DELETE("/executions/:id", a.cancel)
	router.DELETE("/executions", a.cancelAll)
	router.GET("/history", a.history)
	router.GET("/stats", a.stats)
	return router
}

func (a *api) listTools(c *gin.Context) {
	tools := a.exec.Registry().List()
	out := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolInfo{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) searchTools(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 10)
	if !ok {
		return
	}
	results, err := a.exec.SearchTools(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (a *api) execute(c *gin.Context) {
	var inv tool.Invocation
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a.exec.Execute(c.Request.Context(), inv))
}

func (a *api) runBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := a.exec.ExecuteBatch(c.Request.Context(), req.Invocations, batch.Options{
		MaxConcurrency: req.MaxConcurrency,
		TaskTimeout:    time.Duration(req.TaskTimeoutMs) * time.Millisecond,
		StopOnError:    req.StopOnError,
	})
	resp := BatchResponse{Results: make([]BatchResult, len(results)), Summary: batch.Summarize(results)}
	for i, r := range results {
		br := BatchResult{ID: r.ID, Succeeded: r.Succeeded, Outcome: r.Value, DurationMs: r.Duration.Milliseconds()}
		if r.Err != nil {
			br.Error = r.Err.Error()
		}
		resp.Results[i] = br
	}
	c.JSON(http.StatusOK, resp)
}

func (a *api) active(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active": a.exec.Monitor().Active()})
}

func (a *api) cancel(c *gin.Context) {
	id := c.Param("id")
	if !a.exec.Monitor().Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active execution " + id})
		return
	}
	telemetry.Logf(a.logger, "ops: cancelled execution %s", id)
	c.JSON(http.StatusOK, gin.H{"cancelled": id})
}

func (a *api) cancelAll(c *gin.Context) {
	n := a.exec.Monitor().CancelAll()
	telemetry.Logf(a.logger, "ops: cancelled %d executions", n)
	c.JSON(http.StatusOK, gin.H{"cancelled": n})
}

func (a *api) history(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	f := monitor.Filter{Tool: c.Query("tool"), Limit: limit}

	if c.Query("source") == "durable" {
		if a.store == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "durable history is not configured"})
			return
		}
		recs, err := a.store.List(c.Request.Context(), f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, recs)
		return
	}
	c.JSON(http.StatusOK, a.exec.Monitor().History(f))
}

func (a *api) stats(c *gin.Context) {
	if name := c.Query("tool"); name != "" {
		s, ok := a.exec.Monitor().StatsFor(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no history for tool " + name})
			return
		}
		c.JSON(http.StatusOK, s)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Tools: a.exec.Monitor().Stats(), Errors: a.exec.ErrorStats()})
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key + ": " + raw})
		return 0, false
	}
	return n, true
}
