package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/matcha/internal/model"
)

// writeAPIError は統一エラーフォーマットでエラーレスポンスを書き込む。
// handler側のフォーマットと同一構造。ミドルウェアはhandlerより前段に
// 位置するため、自前のヘルパーとして持つ。
func writeAPIError(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"code":     apiErr.Code,
		"message":  apiErr.Message,
		"category": apiErr.Category,
		"action":   apiErr.Action,
	})
}

// writeUnauthorized は統一エラーフォーマットで401を書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIError(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}
