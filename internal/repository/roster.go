package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
)

// RosterRepository 名册仓储
type RosterRepository struct {
	db DB
}

// NewRosterRepository 创建名册仓储
func NewRosterRepository(db DB) *RosterRepository {
	return &RosterRepository{db: db}
}

var _ Repository[model.Roster] = (*RosterRepository)(nil)

// Create 创建名册
func (r *RosterRepository) Create(ctx context.Context, roster *model.Roster) error {
	if roster.ID == uuid.Nil {
		roster.ID = uuid.New()
	}
	now := time.Now()
	roster.CreatedAt = now
	roster.UpdatedAt = now

	employeesJSON, err := json.Marshal(roster.Employees)
	if err != nil {
		return fmt.Errorf("序列化员工失败: %w", err)
	}

	query := `
		INSERT INTO rosters (id, manager_id, name, schedulable_days, employees, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		roster.ID, roster.ManagerID, roster.Name, pq.Array(weekdaysToInts(roster.SchedulableDays)),
		employeesJSON, roster.CreatedAt, roster.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "创建名册失败")
	}

	return nil
}

// GetByID 根据ID获取名册
func (r *RosterRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Roster, error) {
	query := `
		SELECT id, manager_id, name, schedulable_days, employees, created_at, updated_at
		FROM rosters
		WHERE id = $1 AND deleted_at IS NULL
	`

	roster, err := scanRoster(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("名册", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询名册失败")
	}
	return roster, nil
}

// Update 更新名册
func (r *RosterRepository) Update(ctx context.Context, roster *model.Roster) error {
	roster.UpdatedAt = time.Now()

	employeesJSON, err := json.Marshal(roster.Employees)
	if err != nil {
		return fmt.Errorf("序列化员工失败: %w", err)
	}

	query := `
		UPDATE rosters SET
			name = $2, schedulable_days = $3, employees = $4, updated_at = $5
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		roster.ID, roster.Name, pq.Array(weekdaysToInts(roster.SchedulableDays)), employeesJSON, roster.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "更新名册失败")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("名册", roster.ID.String())
	}

	return nil
}

// Delete 软删除名册
func (r *RosterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE rosters
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除名册失败")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("名册", id.String())
	}

	return nil
}

// List 查询名册列表
func (r *RosterRepository) List(ctx context.Context, filter ListFilter) ([]*model.Roster, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.ManagerID != nil {
		conditions = append(conditions, fmt.Sprintf("manager_id = $%d", argIndex))
		args = append(args, *filter.ManagerID)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM rosters WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询总数失败")
	}

	query := fmt.Sprintf(`
		SELECT id, manager_id, name, schedulable_days, employees, created_at, updated_at
		FROM rosters
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

	var rosters []*model.Roster
	for rows.Next() {
		roster, err := scanRoster(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "扫描行失败")
		}
		rosters = append(rosters, roster)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询列表失败")
	}

	return rosters, total, nil
}

func scanRoster(row Scanner) (*model.Roster, error) {
	roster := &model.Roster{}
	var days []int64
	var employeesJSON []byte

	if err := row.Scan(&roster.ID, &roster.ManagerID, &roster.Name, pq.Array(&days), &employeesJSON,
		&roster.CreatedAt, &roster.UpdatedAt); err != nil {
		return nil, err
	}

	roster.SchedulableDays = intsToWeekdays(days)
	if len(employeesJSON) > 0 {
		if err := json.Unmarshal(employeesJSON, &roster.Employees); err != nil {
			return nil, fmt.Errorf("解析员工失败: %w", err)
		}
	}
	return roster, nil
}
