package params

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Agent.ListenAddr != ":8090" {
		t.Errorf("ListenAddr = %q", cfg.Agent.ListenAddr)
	}
	if cfg.Currency.KeySKU != "5021;6" || cfg.Currency.ScrapSKU != "5000;6" {
		t.Errorf("currency SKUs = %+v", cfg.Currency)
	}
	if cfg.Currency.HighValueMultiple != 15 {
		t.Errorf("HighValueMultiple = %d", cfg.Currency.HighValueMultiple)
	}
	if cfg.Retry.EscrowFailWindow != 5*time.Minute {
		t.Errorf("EscrowFailWindow = %v", cfg.Retry.EscrowFailWindow)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENT_OWNER_ID", "7656119")
	t.Setenv("AGENT_LISTEN", ":9000")
	t.Setenv("WEAPONS_AS_CURRENCY", "true")
	t.Setenv("WEAPON_SKUS", "10;6,11;6")
	t.Setenv("HIGH_VALUE_MULTIPLE", "25")
	t.Setenv("RETRY_BASE_DELAY_MS", "250")

	cfg := LoadFromEnv("testdata/does-not-exist.env")
	if cfg.Agent.OwnerID != "7656119" {
		t.Errorf("OwnerID = %q", cfg.Agent.OwnerID)
	}
	if cfg.Agent.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.Agent.ListenAddr)
	}
	if !cfg.Currency.WeaponsAsCurrency || len(cfg.Currency.WeaponSKUs) != 2 {
		t.Errorf("weapons = %v %v", cfg.Currency.WeaponsAsCurrency, cfg.Currency.WeaponSKUs)
	}
	if cfg.Currency.HighValueMultiple != 25 {
		t.Errorf("HighValueMultiple = %d", cfg.Currency.HighValueMultiple)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v", cfg.Retry.BaseDelay)
	}
}

func TestEnvBadNumbersKeepDefaults(t *testing.T) {
	t.Setenv("HIGH_VALUE_MULTIPLE", "not-a-number")
	t.Setenv("RETRY_BASE_DELAY_MS", "")

	cfg := LoadFromEnv("testdata/does-not-exist.env")
	if cfg.Currency.HighValueMultiple != 15 {
		t.Errorf("HighValueMultiple = %d", cfg.Currency.HighValueMultiple)
	}
	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v", cfg.Retry.BaseDelay)
	}
}
