package token

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateRandomString 生成指定字节长度的随机十六进制字符串。
func GenerateRandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
