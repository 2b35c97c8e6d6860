package handler

import (
	"net/http"

	"github.com/paiban/rota/internal/constraints"
)

// Library 返回当前生效的规则和优化目标
//
// 只列出已注册到约束管理器的规则，附加约束由管理器注册后同样生效但不在目录中描述。
func (h *ScheduleHandler) Library(w http.ResponseWriter, r *http.Request) {
	lib := constraints.GetLibrary(h.scheduler.Options()).Registered(h.scheduler.Manager())
	respondJSON(w, http.StatusOK, lib)
}
