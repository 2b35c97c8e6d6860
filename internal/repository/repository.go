// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository 通用仓储接口
type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*T, int, error)
}

// ListFilter 列表查询过滤器
type ListFilter struct {
	ManagerID  *uuid.UUID `json:"manager_id,omitempty"`
	Search     string     `json:"search,omitempty"`
	ActiveOnly bool       `json:"active_only,omitempty"`
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
	OrderBy    string     `json:"order_by,omitempty"`
	OrderDir   string     `json:"order_dir,omitempty"` // asc/desc
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithManagerID 设置负责人
func (f ListFilter) WithManagerID(managerID uuid.UUID) ListFilter {
	f.ManagerID = &managerID
	return f
}

// WithSearch 设置名称搜索
func (f ListFilter) WithSearch(search string) ListFilter {
	f.Search = search
	return f
}

// sortableColumns 允许排序的列
var sortableColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// orderClause 生成排序子句，非法的列名和方向回退到默认值
func (f ListFilter) orderClause() string {
	orderBy := f.OrderBy
	if !sortableColumns[orderBy] {
		orderBy = "created_at"
	}
	orderDir := "DESC"
	if f.OrderDir == "asc" {
		orderDir = "ASC"
	}
	return fmt.Sprintf("%s %s", orderBy, orderDir)
}

// limit 返回有效的分页大小
func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 100 {
		return 20
	}
	return f.Limit
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

// weekdaysToInts 转换为数据库整数数组
func weekdaysToInts(days []time.Weekday) []int64 {
	result := make([]int64, len(days))
	for i, d := range days {
		result[i] = int64(d)
	}
	return result
}

// intsToWeekdays 从数据库整数数组还原
func intsToWeekdays(values []int64) []time.Weekday {
	result := make([]time.Weekday, 0, len(values))
	for _, v := range values {
		if v < int64(time.Sunday) || v > int64(time.Saturday) {
			continue
		}
		result = append(result, time.Weekday(v))
	}
	return result
}
