// Package model はドメインモデルを定義する。
package model

import "time"

// Fire はあるユーザーから別のユーザーへの一方向の評価（ライク/ディスライク）を表す。
// (ActorID, TargetID) の組はストレージのユニーク制約により高々1件。
// IsMatchはfalse→trueの一方向遷移で、双方向のライクが揃ったときにのみ立つ。
type Fire struct {
	ActorID   int64      `json:"userId"`
	TargetID  int64      `json:"targetUserId"`
	IsLike    bool       `json:"isLike"`
	IsMatch   bool       `json:"isMatch"`
	CreatedAt time.Time  `json:"createdAt"`
	MatchedAt *time.Time `json:"matchedAt,omitempty"`
}

// FireResult はRecordFireの結果を表す。
// IsMatchがtrueの場合、Fireは両方向ともmatched済みの状態で返る。
type FireResult struct {
	IsMatch bool  `json:"isMatch"`
	Fire    *Fire `json:"match"`
}
