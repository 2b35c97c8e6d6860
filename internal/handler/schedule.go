package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/paiban/rota/internal/metrics"
	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/logger"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/scheduler"
	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/objective"
	"github.com/paiban/rota/pkg/scheduler/solver"
	"github.com/paiban/rota/pkg/stats"
	"github.com/paiban/rota/pkg/validator"
)

// MaxBatchSize 批量接口单次最多请求数
const MaxBatchSize = 50

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	scheduler *scheduler.Scheduler
	detector  *validator.ConflictDetector
}

// NewScheduleHandler 创建排班处理器
func NewScheduleHandler(s *scheduler.Scheduler) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler: s,
		detector:  newDetector(s),
	}
}

// newDetector 按排班引擎的选项创建冲突检测器，保证验证和求解使用同一套规则
func newDetector(s *scheduler.Scheduler) *validator.ConflictDetector {
	opts := s.Options()
	cfg := validator.DefaultDetectorConfig()
	cfg.Options = constraint.Options{
		MaxConsecutiveDays: opts.MaxConsecutiveDays,
		Top3Guarantee:      opts.Top3Guarantee,
		ForbidUnavailable:  opts.ForbidUnavailable,
	}
	cfg.Costs.UnavailableThreshold = opts.UnavailableThreshold
	return validator.NewConflictDetector(cfg, s.Manager())
}

// solve 求解并记录指标
func (h *ScheduleHandler) solve(ctx context.Context, req *model.Request) (*scheduler.Result, error) {
	start := time.Now()
	result, err := h.scheduler.Generate(ctx, req)
	metrics.RecordScheduleGeneration(h.scheduler.Options().Strategy, result, err, time.Since(start))
	return result, err
}

// GenerateLegacy 兼容旧前端的排班接口
//
// 成功时直接返回排班数组；任何失败都返回 500 和 {error, details}。
func (h *ScheduleHandler) GenerateLegacy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method Not Allowed"})
		return
	}

	var req model.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondLegacyError(w, err)
		return
	}

	result, err := h.solve(r.Context(), &req)
	if err != nil {
		respondLegacyError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result.Schedule)
}

func respondLegacyError(w http.ResponseWriter, err error) {
	appErr := errors.From(err)
	body := map[string]interface{}{
		"error":   "Solver failed",
		"details": appErr.Message,
		"code":    appErr.Code,
	}
	if reason := errors.GetReason(appErr); reason != "" {
		body["reason"] = reason
	}
	respondJSON(w, http.StatusInternalServerError, body)
}

// GenerateResponse 排班生成响应
type GenerateResponse struct {
	Success   bool                    `json:"success"`
	Status    solver.Status           `json:"status"`
	Strategy  objective.Strategy      `json:"strategy"`
	Schedule  model.Schedule          `json:"schedule"`
	Objective objective.Values        `json:"objective"`
	Phases    []solver.PhaseResult    `json:"phases,omitempty"`
	Fairness  *stats.FairnessMetrics  `json:"fairness,omitempty"`
	Report    *constraint.BuildReport `json:"report,omitempty"`
	Duration  string                  `json:"duration"`
}

func newGenerateResponse(result *scheduler.Result) GenerateResponse {
	return GenerateResponse{
		Success:   true,
		Status:    result.Status,
		Strategy:  result.Strategy,
		Schedule:  result.Schedule,
		Objective: result.Objective,
		Phases:    result.Phases,
		Fairness:  result.Fairness,
		Report:    result.Report,
		Duration:  result.Duration.String(),
	}
}

// Generate 生成排班
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	logger.WithContext(r.Context()).Info().
		Int("employees", len(req.Employees)).
		Int("days", len(req.Dates)).
		Msg("接收排班请求")

	result, err := h.solve(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newGenerateResponse(result))
}

// ValidateRequest 排班验证请求
type ValidateRequest struct {
	model.Request
	Schedule model.Schedule `json:"schedule"`
}

// ValidateResponse 验证响应
type ValidateResponse struct {
	IsValid   bool                           `json:"is_valid"`
	Conflicts []validator.Conflict           `json:"conflicts"`
	Summary   map[validator.ConflictType]int `json:"summary"`
}

// Validate 验证排班
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req ValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	conflicts, err := h.detector.DetectAll(&req.Request, req.Schedule)
	if err != nil {
		respondError(w, err)
		return
	}

	valid := true
	for _, c := range conflicts {
		if c.IsError() {
			valid = false
			break
		}
	}
	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}

	respondJSON(w, http.StatusOK, ValidateResponse{
		IsValid:   valid,
		Conflicts: conflicts,
		Summary:   validator.GetConflictSummary(conflicts),
	})
}

// BatchRequest 批量排班请求
type BatchRequest struct {
	Requests []model.Request `json:"requests"`
}

// BatchItemResponse 批量排班中单个请求的结果
type BatchItemResponse struct {
	Index  int               `json:"index"`
	Result *GenerateResponse `json:"result,omitempty"`
	Error  *errors.AppError  `json:"error,omitempty"`
}

// BatchResponse 批量排班响应
type BatchResponse struct {
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Items     []BatchItemResponse `json:"items"`
	Duration  string              `json:"duration"`
}

// Batch 并行求解多个独立请求
func (h *ScheduleHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.Requests) == 0 {
		respondError(w, errors.InvalidInput("requests", "请求列表不能为空"))
		return
	}
	if len(req.Requests) > MaxBatchSize {
		respondError(w, errors.InvalidInput("requests", fmt.Sprintf("单次最多 %d 个请求", MaxBatchSize)))
		return
	}

	start := time.Now()
	reqs := make([]*model.Request, len(req.Requests))
	for i := range req.Requests {
		reqs[i] = &req.Requests[i]
	}

	items := h.scheduler.SolveBatch(r.Context(), reqs)

	resp := BatchResponse{
		Total: len(items),
		Items: make([]BatchItemResponse, len(items)),
	}
	for i, item := range items {
		var dur time.Duration
		if item.Result != nil {
			dur = item.Result.Duration
		}
		metrics.RecordScheduleGeneration(h.scheduler.Options().Strategy, item.Result, item.Err, dur)

		resp.Items[i].Index = item.Index
		if item.Err != nil {
			resp.Failed++
			resp.Items[i].Error = errors.From(item.Err)
			continue
		}
		resp.Succeeded++
		gr := newGenerateResponse(item.Result)
		resp.Items[i].Result = &gr
	}
	resp.Duration = time.Since(start).String()

	respondJSON(w, http.StatusOK, resp)
}
