package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/brieferhq/briefer/internal/agent/core"
	"github.com/brieferhq/briefer/internal/task"
)

// TasksHandler exposes the research pipeline over HTTP: synchronous runs,
// async task submission, status queries and SSE streaming.
type TasksHandler struct {
	Orchestrator *core.Orchestrator
	Manager      *task.Manager
	Deep         core.DeepResearcher
	Logger       *log.Logger
}

func (h *TasksHandler) Register(g *echo.Group) {
	g.POST("/research", h.research)
	g.GET("/tasks", h.listTasks)
	g.GET("/tasks/:id", h.getTask)
	g.GET("/tasks/:id/stream", h.streamTask)
}

type researchRequest struct {
	Query    string         `json:"query"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Controls *core.Controls `json:"controls,omitempty"`
	Async    bool           `json:"async,omitempty"`
}

func (r researchRequest) normalized() core.NormalizedRequest {
	metadata := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		metadata[k] = v
	}
	if r.Controls != nil {
		metadata["controls"] = *r.Controls
	}
	return core.NormalizedRequest{Query: strings.TrimSpace(r.Query), Metadata: metadata}
}

// research runs the pipeline. Deep requests and explicit async requests are
// queued as tasks and answered with 202; everything else runs inline.
func (h *TasksHandler) research(c echo.Context) error {
	var body researchRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(body.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	req := body.normalized()
	wantsDeep := body.Controls != nil && strings.EqualFold(body.Controls.Depth, "deep")

	if body.Async || wantsDeep {
		useDeep := wantsDeep && h.Deep != nil
		taskID, err := h.Manager.Submit(c.Request().Context(), req, useDeep)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusAccepted, map[string]string{
			"task_id": taskID,
			"status":  string(task.StatusQueued),
		})
	}

	result, err := h.Orchestrator.Run(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *TasksHandler) getTask(c echo.Context) error {
	taskID := c.Param("id")
	state, ok := h.Manager.Get(c.Request().Context(), taskID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("task %s not found", taskID))
	}
	return c.JSON(http.StatusOK, state)
}

func (h *TasksHandler) listTasks(c echo.Context) error {
	status := c.QueryParam("status")
	limit := 50
	if val := strings.TrimSpace(c.QueryParam("limit")); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			limit = n
		}
	}
	states, err := h.Manager.List(c.Request().Context(), status, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": states})
}

// streamTask pushes task progress as Server-Sent Events until the task
// reaches a terminal status.
func (h *TasksHandler) streamTask(c echo.Context) error {
	taskID := c.Param("id")
	ctx := c.Request().Context()

	events, err := h.Manager.Stream(ctx, taskID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, open := <-events:
			if !open {
				return nil
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				h.Logger.Printf("stream encode failed for task %s: %v", taskID, err)
				continue
			}
			if _, err := resp.Write([]byte("event: " + event.Type + "\n")); err != nil {
				return nil
			}
			if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
