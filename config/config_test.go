package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_SIGNED_URL_TTL_SECONDS", "")
	t.Setenv("DOWNLOAD_INTER_ITEM_DELAY_MS", "")

	cfg := Load()

	assert.Equal(t, time.Hour, cfg.Storage.SignedURLTTL())
	assert.Equal(t, 800*time.Millisecond, cfg.Delivery.InterItemDelay())
	assert.Equal(t, 3, cfg.Delivery.CountdownSeconds)
	assert.Equal(t, "/order-success", cfg.Delivery.OrderSuccessPath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_BASE_URL", "https://abc.supabase.co/")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "5")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	assert.Equal(t, "https://abc.supabase.co", cfg.Storage.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Delivery.FetchTimeout())
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoadDownloadPacingFloor(t *testing.T) {
	t.Setenv("DOWNLOAD_INTER_ITEM_DELAY_MS", "50")

	cfg := Load()
	assert.Equal(t, 800*time.Millisecond, cfg.Delivery.InterItemDelay())
	assert.Equal(t, 3, cfg.Delivery.CountdownSeconds)

	t.Setenv("DOWNLOAD_INTER_ITEM_DELAY_MS", "1200")
	assert.Equal(t, 1200*time.Millisecond, Load().Delivery.InterItemDelay())
}
