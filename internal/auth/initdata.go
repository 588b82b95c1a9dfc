// Package auth はTelegram initDataの検証とセッション管理を提供する。
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/hitoshi/matcha/internal/model"
)

// VerifyInitData はTelegramミニアプリのinitDataの署名を検証する。
//
// アルゴリズム（Telegram Web Apps仕様）:
//  1. hashフィールドを除いた全key=valueペアをキーのバイト順でソートする
//  2. "key=value"を改行区切りで連結しdata-check-stringを作る
//  3. 署名鍵 = HMAC-SHA256(key="WebAppData", message=botToken)
//  4. HMAC-SHA256(署名鍵, data-check-string) の小文字hexがhashフィールドと
//     一致すれば正当
//
// 比較は定数時間で行う。hash欠落や解析不能なinitDataはfalseを返し、
// パニックは起こさない。botToken未設定はデプロイ不備であり、
// ここに到達する前にconfig.Loadで弾かれる前提。
func VerifyInitData(initData, botToken string) bool {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return false
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return false
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	dataCheckString := strings.Join(lines, "\n")

	secretKey := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	computed := hex.EncodeToString(hmacSHA256(secretKey, []byte(dataCheckString)))

	return subtle.ConstantTimeCompare([]byte(computed), []byte(gotHash)) == 1
}

// hmacSHA256 はHMAC-SHA256(key, message)を計算する。
func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// initDataUser はinitDataのuserフィールドに入るJSONの形。
type initDataUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// ParseUser はinitDataのuserフィールドからユーザー候補を抽出する。
// userフィールドの欠落、JSONとして不正、外部ID欠落の場合は
// MALFORMED_INIT_DATAエラーを返す。
// language_code未指定時はdefaultLocaleで補完する。
func ParseUser(initData, defaultLocale string) (*model.UserCandidate, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, model.NewMalformedInitDataError("invalid query encoding")
	}

	userParam := values.Get("user")
	if userParam == "" {
		return nil, model.NewMalformedInitDataError("user field is missing")
	}

	var u initDataUser
	if err := json.Unmarshal([]byte(userParam), &u); err != nil {
		return nil, model.NewMalformedInitDataError("user field is not valid JSON")
	}

	if u.ID == 0 {
		return nil, model.NewMalformedInitDataError("user id is missing")
	}

	locale := u.LanguageCode
	if locale == "" {
		locale = defaultLocale
	}

	return &model.UserCandidate{
		TgID:         u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageCode: locale,
	}, nil
}
