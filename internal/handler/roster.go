package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/rota/internal/repository"
	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/preference"
)

// RosterStore 名册存储
type RosterStore interface {
	Create(ctx context.Context, roster *model.Roster) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Roster, error)
	List(ctx context.Context, filter repository.ListFilter) ([]*model.Roster, int, error)
}

// SessionStore 偏好会话存储
type SessionStore interface {
	Create(ctx context.Context, session *model.PreferenceSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PreferenceSession, error)
	AddResponse(ctx context.Context, resp *model.EmployeeResponse) error
	ListResponses(ctx context.Context, sessionID uuid.UUID) ([]*model.EmployeeResponse, error)
}

// RosterHandler 名册和偏好会话处理器
type RosterHandler struct {
	rosters  RosterStore
	sessions SessionStore
	schedule *ScheduleHandler
}

// NewRosterHandler 创建名册处理器
func NewRosterHandler(rosters RosterStore, sessions SessionStore, schedule *ScheduleHandler) *RosterHandler {
	return &RosterHandler{rosters: rosters, sessions: sessions, schedule: schedule}
}

// RosterScheduleRequest 按名册排班请求
type RosterScheduleRequest struct {
	StartDate          string   `json:"start_date"`
	EndDate            string   `json:"end_date"`
	ExcludedDates      []string `json:"excluded_dates,omitempty"`
	MaxConsecutiveDays *int     `json:"max_consecutive_days,omitempty"`
}

func (req *RosterScheduleRequest) validate() error {
	ve := &errors.ValidationErrors{}
	if req.StartDate == "" {
		ve.Add("start_date", "开始日期不能为空")
	}
	if req.EndDate == "" {
		ve.Add("end_date", "结束日期不能为空")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// CreateRoster 创建名册
func (h *RosterHandler) CreateRoster(w http.ResponseWriter, r *http.Request) {
	var roster model.Roster
	if err := decodeJSON(w, r, &roster); err != nil {
		respondError(w, err)
		return
	}
	if roster.Name == "" {
		respondError(w, errors.InvalidInput("name", "名册名称不能为空"))
		return
	}
	if len(roster.Employees) == 0 {
		respondError(w, errors.InvalidInput("employees", "员工列表不能为空"))
		return
	}

	roster.ID = uuid.Nil
	if err := h.rosters.Create(r.Context(), &roster); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, roster)
}

// GetRoster 获取名册
func (h *RosterHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	roster, err := h.rosters.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, roster)
}

// ListRosters 名册列表
func (h *RosterHandler) ListRosters(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		respondError(w, err)
		return
	}
	rosters, total, err := h.rosters.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if rosters == nil {
		rosters = []*model.Roster{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": rosters,
		"total": total,
	})
}

// ScheduleRoster 用已保存的名册生成排班
func (h *RosterHandler) ScheduleRoster(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req RosterScheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, err)
		return
	}

	roster, err := h.rosters.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	h.generate(w, r, roster.Employees, roster.SchedulableDays, &req)
}

// CreateSession 创建偏好会话
func (h *RosterHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var session model.PreferenceSession
	if err := decodeJSON(w, r, &session); err != nil {
		respondError(w, err)
		return
	}
	if session.Name == "" {
		respondError(w, errors.InvalidInput("name", "会话名称不能为空"))
		return
	}

	session.ID = uuid.Nil
	session.IsActive = true
	if err := h.sessions.Create(r.Context(), &session); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// GetSession 获取偏好会话及已提交的偏好
func (h *RosterHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	session, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	responses, err := h.sessions.ListResponses(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if responses == nil {
		responses = []*model.EmployeeResponse{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session":   session,
		"is_open":   session.IsOpen(time.Now()),
		"responses": responses,
	})
}

// SubmitResponse 员工提交偏好
func (h *RosterHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var resp model.EmployeeResponse
	if err := decodeJSON(w, r, &resp); err != nil {
		respondError(w, err)
		return
	}
	resp.ID = uuid.Nil
	resp.SessionID = id

	if err := h.sessions.AddResponse(r.Context(), &resp); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// ScheduleSession 用偏好会话收集到的偏好生成排班
func (h *RosterHandler) ScheduleSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req RosterScheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, err)
		return
	}

	session, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	responses, err := h.sessions.ListResponses(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if len(responses) == 0 {
		respondError(w, errors.New(errors.CodeInvalidInput, "偏好会话还没有任何提交"))
		return
	}

	h.generate(w, r, model.ToRankedEmployees(responses), session.SchedulableDays, &req)
}

// generate 将偏好排序展开为引擎请求并求解
func (h *RosterHandler) generate(w http.ResponseWriter, r *http.Request, ranked []model.RankedEmployee, schedulable []time.Weekday, req *RosterScheduleRequest) {
	dates, err := preference.BuildDates(req.StartDate, req.EndDate, schedulable, req.ExcludedDates)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "日期范围无效").WithDetails(err.Error()))
		return
	}

	engineReq := &model.Request{
		Employees:          preference.Employees(ranked, schedulable),
		Dates:              dates,
		MaxConsecutiveDays: req.MaxConsecutiveDays,
	}

	result, err := h.schedule.solve(r.Context(), engineReq)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newGenerateResponse(result))
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CodeInvalidInput, "无效的ID格式: "+raw)
	}
	return id, nil
}

// listFilter 从查询参数构造列表过滤器
func listFilter(r *http.Request) (repository.ListFilter, error) {
	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithSearch(q.Get("search"))

	if raw := q.Get("manager_id"); raw != "" {
		managerID, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.Wrap(err, errors.CodeInvalidInput, "无效的负责人ID格式")
		}
		filter = filter.WithManagerID(managerID)
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.InvalidInput("limit", "必须为整数")
		}
		filter = filter.WithLimit(limit)
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.InvalidInput("offset", "必须为非负整数")
		}
		filter = filter.WithOffset(offset)
	}
	filter.OrderBy = q.Get("order_by")
	filter.OrderDir = q.Get("order_dir")
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	return filter, nil
}
