// Package model はドメインモデルを定義する。
package model

import "time"

// Session はユーザーのログインセッションを表す。
// IDは256bitの乱数をhexエンコードした不透明トークン。
// 有効期限は発行時刻からの絶対時刻で、アクセスによる延長は行わない。
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired はセッションが時刻nowの時点で失効しているかを判定する。
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
