// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paiban/rota/pkg/errors"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 4 << 20

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err error) {
	appErr := errors.From(err)
	body := map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	if reason := errors.GetReason(appErr); reason != "" {
		body["reason"] = reason
	}
	if appErr.Code == errors.CodeValidationFail && len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	if appErr.Retryable {
		body["retryable"] = true
	}
	respondJSON(w, appErr.HTTPStatus, body)
}

// decodeJSON 解析请求体
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败").WithDetails(err.Error())
	}
	return nil
}

// requirePost 非POST请求返回 405
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	respondJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
		"error":   true,
		"code":    errors.CodeInvalidInput,
		"message": "仅支持POST方法",
	})
	return false
}
