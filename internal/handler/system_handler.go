package handler

import (
	"context"
	"net/http"
)

// Pinger はデータベース疎通確認のインターフェース。
// *sql.DBがみたす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler はヘルスチェックとバージョン情報のHTTPハンドラー。
type SystemHandler struct {
	db      Pinger
	version string
}

// NewSystemHandler はSystemHandlerを生成する。
func NewSystemHandler(db Pinger, version string) *SystemHandler {
	return &SystemHandler{
		db:      db,
		version: version,
	}
}

// Health はデータベース疎通を含むヘルスチェックを返す。
// GET /api/health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Version はアプリケーションのバージョンを返す。
// GET /api/version
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}
