// Package model はドメインモデルを定義する。
package model

import "time"

// Gender はユーザーの性別を表す。
type Gender string

// Gender の取りうる値。
const (
	GenderMale         Gender = "male"
	GenderFemale       Gender = "female"
	GenderNotSpecified Gender = "not_specified"
)

// IsValid は既知の性別値かを判定する。
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNotSpecified:
		return true
	}
	return false
}

// InterestsGender はユーザーが希望する相手の性別を表す。
type InterestsGender string

// InterestsGender の取りうる値。
const (
	InterestsMale         InterestsGender = "male"
	InterestsFemale       InterestsGender = "female"
	InterestsBoth         InterestsGender = "both"
	InterestsNotSpecified InterestsGender = "not_specified"
)

// IsValid は既知の希望性別値かを判定する。
func (g InterestsGender) IsValid() bool {
	switch g {
	case InterestsMale, InterestsFemale, InterestsBoth, InterestsNotSpecified:
		return true
	}
	return false
}

// AgeRange はユーザーの年齢帯を表す。
type AgeRange string

// AgeRange の取りうる値。
const (
	AgeRange18to25       AgeRange = "18-25"
	AgeRange26to35       AgeRange = "26-35"
	AgeRange36to45       AgeRange = "36-45"
	AgeRange46Plus       AgeRange = "46+"
	AgeRangeNotSpecified AgeRange = "not_specified"
)

// IsValid は既知の年齢帯値かを判定する。
func (a AgeRange) IsValid() bool {
	switch a {
	case AgeRange18to25, AgeRange26to35, AgeRange36to45, AgeRange46Plus, AgeRangeNotSpecified:
		return true
	}
	return false
}

// User はミニアプリの利用ユーザーを表す。
// TgIDはTelegramが発行する外部IDで、不変かつ一意。
type User struct {
	TgID            int64           `json:"id"`
	FirstName       string          `json:"firstName"`
	LastName        string          `json:"lastName"`
	Username        string          `json:"username"`
	LanguageCode    string          `json:"languageCode"`
	Gender          Gender          `json:"gender"`
	InterestsGender InterestsGender `json:"interestsGender"`
	AgeRange        AgeRange        `json:"ageRange"`
	Photo           string          `json:"photo"`
	RestScores      int             `json:"restScores"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// UserCandidate はinitDataから抽出した未永続のユーザー情報を表す。
// upsert時、ゼロ値でないフィールドのみが既存レコードを上書きする。
type UserCandidate struct {
	TgID         int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}
