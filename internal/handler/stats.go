package handler

import (
	"net/http"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/logger"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/stats"
)

// StatsRequest 统计请求
type StatsRequest struct {
	Employees []model.Employee `json:"employees"`
	Dates     []model.DateSlot `json:"dates,omitempty"`
	Schedule  model.Schedule   `json:"schedule"`
}

// FairnessResponse 公平性响应
type FairnessResponse struct {
	Success bool                   `json:"success"`
	Data    *stats.FairnessMetrics `json:"data,omitempty"`
}

// CoverageResponse 覆盖率响应
type CoverageResponse struct {
	Success bool                   `json:"success"`
	Data    *stats.CoverageMetrics `json:"data,omitempty"`
	Report  string                 `json:"report,omitempty"`
}

// StatsHandler 统计分析处理器
type StatsHandler struct {
	unavailableThreshold int
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(unavailableThreshold int) *StatsHandler {
	if unavailableThreshold <= 0 {
		unavailableThreshold = model.CostUnavailable
	}
	return &StatsHandler{unavailableThreshold: unavailableThreshold}
}

// Fairness 公平性分析API
func (h *StatsHandler) Fairness(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req StatsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	logger.WithContext(r.Context()).Debug().
		Int("employees", len(req.Employees)).
		Int("entries", len(req.Schedule)).
		Msg("接收公平性分析请求")

	analyzer := stats.NewFairnessAnalyzer().WithUnavailableThreshold(h.unavailableThreshold)
	respondJSON(w, http.StatusOK, FairnessResponse{
		Success: true,
		Data:    analyzer.Analyze(req.Schedule, req.Employees),
	})
}

// Coverage 覆盖率分析API
func (h *StatsHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req StatsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.Dates) == 0 {
		respondError(w, errors.InvalidInput("dates", "日期列表不能为空"))
		return
	}

	analyzer := stats.NewCoverageAnalyzer()
	analyzer.SetUnavailableThreshold(h.unavailableThreshold)
	m := analyzer.Analyze(req.Dates, req.Schedule, req.Employees)

	resp := CoverageResponse{Success: true, Data: m}
	if r.URL.Query().Get("report") == "true" {
		resp.Report = analyzer.GenerateCoverageReport(m)
	}
	respondJSON(w, http.StatusOK, resp)
}
