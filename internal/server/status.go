package server

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/httputil"
)

// StatusResponse is the data of GET /status
type StatusResponse struct {
	UptimeSeconds    int64   `json:"uptime_seconds"`
	Goroutines       int     `json:"goroutines"`
	ProcessRSSBytes  uint64  `json:"process_rss_bytes,omitempty"`
	SystemMemTotal   uint64  `json:"system_memory_total_bytes,omitempty"`
	SystemMemUsedPct float64 `json:"system_memory_used_percent,omitempty"`
}

// handleStatus reports process and host memory. Probe failures leave fields empty.
func (s *Server) handleStatus(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	resp := StatusResponse{
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			resp.ProcessRSSBytes = info.RSS
		} else {
			logger.Debug("Failed to read process memory", zap.Error(err))
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.SystemMemTotal = vm.Total
		resp.SystemMemUsedPct = vm.UsedPercent
	} else {
		logger.Debug("Failed to read system memory", zap.Error(err))
	}

	httputil.JSONData(ctx, resp, fasthttp.StatusOK)
}
