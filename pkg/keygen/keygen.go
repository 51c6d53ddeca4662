package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// charset 是生成访问key时使用的字符集，与历史部署保持一致。
const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// KeyLength 是日志访问key的长度。
	// 4位字符的碰撞概率是设计上可接受的，上传时不做查重。
	KeyLength = 4
	// passwordMin 和 passwordMax 界定6位数字密码的取值范围。
	passwordMin = 100000
	passwordMax = 999999
)

// RandomString 生成一个指定长度的随机字母数字字符串。
// 使用crypto/rand以避免可预测的key序列。
func RandomString(length int) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("无法生成随机字符: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}

// NumericPassword 生成一个6位数字密码（100000-999999）。
func NumericPassword() (string, error) {
	span := big.NewInt(passwordMax - passwordMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("无法生成随机密码: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+passwordMin), nil
}

// ComposeStorageKey 将key和密码组合成KV存储中实际使用的存储键。
func ComposeStorageKey(key, password string) string {
	return key + "#" + password
}
