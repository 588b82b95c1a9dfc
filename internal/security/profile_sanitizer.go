// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizerService はユーザーが申告するプロフィールのテキストを
// サニタイズし、XSS攻撃などのセキュリティリスクから他のユーザーを保護する。
// プロフィールはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyで全てのHTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizerService はプロフィールテキストのサニタイズ機能のインターフェースを定義する。
// プロフィール更新時の保存前に使用される。
type ProfileSanitizerService interface {
	// SanitizeText はテキストから全てのHTMLタグを除去し、前後の空白を取り除く。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
// プロフィールに許可するタグは存在しないため、StrictPolicy（全タグ除去）を使う。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はテキストから全てのHTMLタグを除去し、前後の空白を取り除く。
func (s *profileSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
