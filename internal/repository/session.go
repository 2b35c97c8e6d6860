package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
)

// PreferenceSessionRepository 偏好收集会话仓储
type PreferenceSessionRepository struct {
	db DB
}

// NewPreferenceSessionRepository 创建会话仓储
func NewPreferenceSessionRepository(db DB) *PreferenceSessionRepository {
	return &PreferenceSessionRepository{db: db}
}

// Create 创建会话
func (r *PreferenceSessionRepository) Create(ctx context.Context, session *model.PreferenceSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO preference_sessions (id, manager_id, name, schedulable_days, is_active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.ManagerID, session.Name, pq.Array(weekdaysToInts(session.SchedulableDays)),
		session.IsActive, session.ExpiresAt, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "创建会话失败")
	}
	return nil
}

// GetByID 根据ID获取会话
func (r *PreferenceSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PreferenceSession, error) {
	query := `
		SELECT id, manager_id, name, schedulable_days, is_active, expires_at, created_at, updated_at
		FROM preference_sessions
		WHERE id = $1 AND deleted_at IS NULL
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("偏好会话", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询会话失败")
	}
	return session, nil
}

// Close 关闭会话，之后不再接受提交
func (r *PreferenceSessionRepository) Close(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE preference_sessions
		SET is_active = FALSE, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "关闭会话失败")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("偏好会话", id.String())
	}
	return nil
}

// List 查询会话列表
func (r *PreferenceSessionRepository) List(ctx context.Context, filter ListFilter) ([]*model.PreferenceSession, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.ManagerID != nil {
		conditions = append(conditions, fmt.Sprintf("manager_id = $%d", argIndex))
		args = append(args, *filter.ManagerID)
		argIndex++
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active")
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM preference_sessions WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询总数失败")
	}

	query := fmt.Sprintf(`
		SELECT id, manager_id, name, schedulable_days, is_active, expires_at, created_at, updated_at
		FROM preference_sessions
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, whereClause, filter.orderClause(), argIndex, argIndex+1)
	args = append(args, filter.limit(), filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询列表失败")
	}
	defer rows.Close()

	var sessions []*model.PreferenceSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "扫描行失败")
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询列表失败")
	}
	return sessions, total, nil
}

// AddResponse 记录员工提交的偏好，会话已关闭或过期时拒绝
func (r *PreferenceSessionRepository) AddResponse(ctx context.Context, resp *model.EmployeeResponse) error {
	session, err := r.GetByID(ctx, resp.SessionID)
	if err != nil {
		return err
	}
	if !session.IsOpen(time.Now()) {
		return errors.New(errors.CodeInvalidInput, "偏好会话已关闭")
	}
	if resp.EmployeeName == "" {
		return errors.InvalidInput("employee_name", "不能为空")
	}

	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	resp.SubmittedAt = time.Now()

	query := `
		INSERT INTO employee_responses (id, session_id, employee_name, employee_email, preferences, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		resp.ID, resp.SessionID, resp.EmployeeName, resp.EmployeeEmail,
		pq.Array(weekdaysToInts(resp.Preferences)), resp.SubmittedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "保存偏好失败")
	}
	return nil
}

// ListResponses 查询会话的全部提交，按提交时间排序
func (r *PreferenceSessionRepository) ListResponses(ctx context.Context, sessionID uuid.UUID) ([]*model.EmployeeResponse, error) {
	query := `
		SELECT id, session_id, employee_name, employee_email, preferences, submitted_at
		FROM employee_responses
		WHERE session_id = $1
		ORDER BY submitted_at
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询偏好失败")
	}
	defer rows.Close()

	var responses []*model.EmployeeResponse
	for rows.Next() {
		resp := &model.EmployeeResponse{}
		var prefs []int64
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.EmployeeName, &resp.EmployeeEmail,
			pq.Array(&prefs), &resp.SubmittedAt); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "扫描行失败")
		}
		resp.Preferences = intsToWeekdays(prefs)
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询偏好失败")
	}
	return responses, nil
}

func scanSession(row Scanner) (*model.PreferenceSession, error) {
	session := &model.PreferenceSession{}
	var days []int64

	if err := row.Scan(&session.ID, &session.ManagerID, &session.Name, pq.Array(&days),
		&session.IsActive, &session.ExpiresAt, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	session.SchedulableDays = intsToWeekdays(days)
	return session, nil
}
