package internal

import (
	"crypto/md5"
	"encoding/hex"
)

// 系統設計問題：
//   沒有註冊流程的情況下，如何把一條瞬時連接綁定到穩定的使用者身份？
//
// 設計方案：
//   ✅ 確定性雜湊 - 相同來源中繼資料永遠得到相同令牌
//   ✅ 純函數 - 無狀態、無錯誤路徑、可獨立測試
//   ✅ 截斷輸出 - 固定 16 字元，方便人工比對與日誌記錄
//
// 明確接受的取捨：
//   - 這是識別捷徑，不是安全憑證（碰撞風險可接受）
//   - 標頭缺失時退化為雜湊空字串，仍然產生合法令牌

const (
	// TokenLength 身份令牌長度（十六進制字元數）
	TokenLength = 16

	// tokenSeparator 來源欄位之間的分隔符，避免 ("ab","c") 與 ("a","bc") 同令牌
	tokenSeparator = "=>"
)

// DeriveToken 從連接來源中繼資料推導身份令牌。
//
// 確定性：相同的 (origin, userAgent) 組合永遠得到相同令牌，
// 因此同一客戶端重連後會解析回同一個身份。
func DeriveToken(origin, userAgent string) string {
	sum := md5.Sum([]byte(origin + tokenSeparator + userAgent))
	return hex.EncodeToString(sum[:])[:TokenLength]
}
