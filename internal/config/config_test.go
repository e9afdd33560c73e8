package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "prodflow")
	t.Setenv("DB_NAME", "prodflow")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MELI_CLIENT_ID", "app")
	t.Setenv("MELI_CLIENT_SECRET", "shh")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.BatchSize != 100 {
		t.Errorf("BatchSize = %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.SoftDeadline != 4*time.Minute {
		t.Errorf("SoftDeadline = %v", cfg.Sync.SoftDeadline)
	}
	if cfg.Sync.MaxAttempts != 5 || cfg.Sync.BaseDelay != time.Second {
		t.Errorf("retry = %d/%v", cfg.Sync.MaxAttempts, cfg.Sync.BaseDelay)
	}
	if !cfg.Sync.MinPrice.IsZero() {
		t.Errorf("MinPrice = %s", cfg.Sync.MinPrice)
	}
	if cfg.Sync.OptimisticLock {
		t.Error("optimistic lock must default to off")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_MIN_PRICE", "350.00")
	t.Setenv("SYNC_BATCH_SIZE", "50")
	t.Setenv("SYNC_UPDATE_DELAY", "100ms")
	t.Setenv("SYNC_OPTIMISTIC_LOCK", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.MinPrice.StringFixed(2) != "350.00" {
		t.Errorf("MinPrice = %s", cfg.Sync.MinPrice)
	}
	if cfg.Sync.BatchSize != 50 || cfg.Sync.UpdateDelay != 100*time.Millisecond || !cfg.Sync.OptimisticLock {
		t.Errorf("sync = %+v", cfg.Sync)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"batch too large", map[string]string{"SYNC_BATCH_SIZE": "500"}, "SYNC_BATCH_SIZE"},
		{"missing meli", map[string]string{"MELI_CLIENT_SECRET": ""}, "MELI_CLIENT_ID"},
		{"bad duration", map[string]string{"SYNC_SOFT_DEADLINE": "soon"}, "SYNC_SOFT_DEADLINE"},
		{"negative min price", map[string]string{"SYNC_MIN_PRICE": "-1"}, "SYNC_MIN_PRICE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
