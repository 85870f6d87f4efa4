package internal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyko96/mafiozzy/internal"
)

// TestDeriveToken 測試身份令牌推導
func TestDeriveToken(t *testing.T) {
	tests := []struct {
		name      string
		origin    string
		userAgent string
	}{
		{
			name:      "typical browser headers",
			origin:    "http://localhost:6001",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64)",
		},
		{
			name:      "empty origin",
			origin:    "",
			userAgent: "Mozilla/5.0",
		},
		{
			name:      "empty user agent",
			origin:    "http://example.com",
			userAgent: "",
		},
		{
			name:      "both headers empty",
			origin:    "",
			userAgent: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := internal.DeriveToken(tt.origin, tt.userAgent)

			// 固定長度的可列印十六進制字串
			require.Len(t, token, internal.TokenLength)
			for _, c := range token {
				assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'),
					"令牌應只含十六進制字元，收到 %q", c)
			}

			// 確定性：相同輸入永遠得到相同令牌
			assert.Equal(t, token, internal.DeriveToken(tt.origin, tt.userAgent))
		})
	}
}

// TestDeriveToken_DistinctInputs 測試不同輸入產生不同令牌
func TestDeriveToken_DistinctInputs(t *testing.T) {
	a := internal.DeriveToken("http://a.example.com", "agent-1")
	b := internal.DeriveToken("http://b.example.com", "agent-1")
	c := internal.DeriveToken("http://a.example.com", "agent-2")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}

// TestDeriveToken_SeparatorMatters 測試欄位邊界不會混淆
func TestDeriveToken_SeparatorMatters(t *testing.T) {
	// ("ab", "c") 與 ("a", "bc") 的串接相同，令牌必須不同
	assert.NotEqual(t,
		internal.DeriveToken("ab", "c"),
		internal.DeriveToken("a", "bc"))
}
