package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRetentionDays(t *testing.T) {
	// 未设置或非法值回退到默认30天，下限1天
	assert.Equal(t, 30, SanitizeRetentionDays(""))
	assert.Equal(t, 30, SanitizeRetentionDays("abc"))
	assert.Equal(t, 30, SanitizeRetentionDays("7天"))
	assert.Equal(t, 7, SanitizeRetentionDays("7"))
	assert.Equal(t, 7, SanitizeRetentionDays(" 7 "))
	assert.Equal(t, 1, SanitizeRetentionDays("0"))
	assert.Equal(t, 1, SanitizeRetentionDays("-3"))
	assert.Equal(t, 365, SanitizeRetentionDays("365"))
}

func TestNormalizeFrontendURL(t *testing.T) {
	url, err := NormalizeFrontendURL("https://log.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://log.example.com/", url)

	url, err = NormalizeFrontendURL("https://log.example.com///")
	require.NoError(t, err)
	assert.Equal(t, "https://log.example.com/", url)

	// 缺省协议默认补https
	url, err = NormalizeFrontendURL("log.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://log.example.com/", url)

	url, err = NormalizeFrontendURL("HTTP://log.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "HTTP://log.example.com/", url)

	_, err = NormalizeFrontendURL("")
	require.Error(t, err)
}

func TestConfigHelpers(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 30, cfg.RetentionDays())
	assert.Equal(t, 1, cfg.EmergencyDays())
	assert.Equal(t, int64(5000), cfg.EmergencyBudget().Milliseconds())

	cfg.Retention.Days = "14"
	cfg.Retention.EmergencyDays = 2
	cfg.Retention.EmergencyBudgetMs = 1000
	assert.Equal(t, 14, cfg.RetentionDays())
	assert.Equal(t, 2, cfg.EmergencyDays())
	assert.Equal(t, int64(1000), cfg.EmergencyBudget().Milliseconds())
}
