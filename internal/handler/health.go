package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

const (
	memoryWarningMB  = 500
	memoryCriticalMB = 1000
)

type healthResponse struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	Uptime       float64           `json:"uptime"`
	Checks       map[string]string `json:"checks"`
	ResponseTime int64             `json:"responseTime"`
}

// Health возвращает состояние сервиса: доступность БД и потребление памяти.
// При деградации отвечает кодом 503 для внешних мониторов.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: start.UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startedAt).Seconds(),
		Checks: map[string]string{
			"database": "unknown",
			"memory":   "unknown",
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		resp.Checks["database"] = "unhealthy"
		resp.Status = "degraded"
	} else {
		resp.Checks["database"] = "healthy"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	heapMB := mem.HeapAlloc / 1024 / 1024

	switch {
	case heapMB > memoryCriticalMB:
		resp.Checks["memory"] = "unhealthy"
		resp.Status = "degraded"
	case heapMB >= memoryWarningMB:
		resp.Checks["memory"] = "warning"
	default:
		resp.Checks["memory"] = "healthy"
	}

	resp.ResponseTime = time.Since(start).Milliseconds()

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, resp)
}
