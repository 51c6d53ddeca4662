package keygen

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomStringFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Za-z0-9]{4}$`)
	for i := 0; i < 100; i++ {
		s, err := RandomString(KeyLength)
		require.NoError(t, err)
		assert.True(t, pattern.MatchString(s), "生成的key格式不正确: %s", s)
	}
}

func TestNumericPasswordRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		p, err := NumericPassword()
		require.NoError(t, err)
		require.Len(t, p, 6)
		n, err := strconv.Atoi(p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestComposeStorageKey(t *testing.T) {
	assert.Equal(t, "aB3x#123456", ComposeStorageKey("aB3x", "123456"))
}
