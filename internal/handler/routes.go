package handler

import "net/http"

// Register 注册排班和统计接口；roster 为空时不注册名册接口
func Register(mux *http.ServeMux, schedule *ScheduleHandler, stats *StatsHandler, roster *RosterHandler) {
	// 旧前端使用的接口
	mux.HandleFunc("/api/generateSchedule", schedule.GenerateLegacy)

	mux.HandleFunc("/api/v1/schedule/generate", schedule.Generate)
	mux.HandleFunc("/api/v1/schedule/validate", schedule.Validate)
	mux.HandleFunc("/api/v1/schedule/batch", schedule.Batch)

	mux.HandleFunc("GET /api/v1/constraints/library", schedule.Library)

	mux.HandleFunc("/api/v1/stats/fairness", stats.Fairness)
	mux.HandleFunc("/api/v1/stats/coverage", stats.Coverage)

	if roster == nil {
		return
	}
	mux.HandleFunc("POST /api/v1/rosters", roster.CreateRoster)
	mux.HandleFunc("GET /api/v1/rosters", roster.ListRosters)
	mux.HandleFunc("GET /api/v1/rosters/{id}", roster.GetRoster)
	mux.HandleFunc("POST /api/v1/rosters/{id}/schedule", roster.ScheduleRoster)

	mux.HandleFunc("POST /api/v1/sessions", roster.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", roster.GetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/responses", roster.SubmitResponse)
	mux.HandleFunc("POST /api/v1/sessions/{id}/schedule", roster.ScheduleSession)
}
