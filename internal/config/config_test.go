package config

import (
	"github.com/shopspring/decimal"
	"testing"
)

func TestGetters(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DECIMAL", "0.025")
	t.Setenv("TEST_SLICE", "a,b,c")

	if got := getInt("TEST_INT", 1); got != 42 {
		t.Errorf("getInt = %d", got)
	}
	if got := getInt("TEST_BAD_INT", 1); got != 1 {
		t.Errorf("getInt should fall back, got %d", got)
	}
	if !getBool("TEST_BOOL", false) || getBool("TEST_MISSING", false) {
		t.Error("getBool returned the wrong value")
	}
	if got := getDecimal("TEST_DECIMAL", decimal.Zero); !got.Equal(decimal.RequireFromString("0.025")) {
		t.Errorf("getDecimal = %s", got)
	}
	if got := getDecimal("TEST_MISSING", decimal.NewFromInt(7)); !got.Equal(decimal.NewFromInt(7)) {
		t.Errorf("getDecimal should fall back, got %s", got)
	}
	if got := getSlice("TEST_SLICE", nil, ","); len(got) != 3 || got[2] != "c" {
		t.Errorf("getSlice = %v", got)
	}
}

func TestGetDefaults(t *testing.T) {
	t.Setenv("MARKETPLACE_FEE", "0.1")
	t.Setenv("WEBHOOK_URLS", "http://a,http://b")

	cfg := Get()
	if !cfg.Marketplace.FeeRate.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("fee rate = %s", cfg.Marketplace.FeeRate)
	}
	if !cfg.Marketplace.RoyaltyPercent.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("royalty percent = %s", cfg.Marketplace.RoyaltyPercent)
	}
	if len(cfg.Webhook.Urls) != 2 {
		t.Errorf("webhook urls = %v", cfg.Webhook.Urls)
	}
	if cfg.ElasticSearch.Enabled || cfg.Amqp.Enabled {
		t.Error("external services should be off by default")
	}
}
