package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.AuthJWTExpiresIn != "15m" {
		t.Errorf("AuthJWTExpiresIn = %q, want %q", cfg.AuthJWTExpiresIn, "15m")
	}
	if cfg.AuthRefreshExpiresIn != "7d" {
		t.Errorf("AuthRefreshExpiresIn = %q, want %q", cfg.AuthRefreshExpiresIn, "7d")
	}
	if cfg.AuthConfirmEmailExpiresIn != "1d" {
		t.Errorf("AuthConfirmEmailExpiresIn = %q, want %q", cfg.AuthConfirmEmailExpiresIn, "1d")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.EmailQueueMaxAttempts != 3 {
		t.Errorf("EmailQueueMaxAttempts = %d, want 3", cfg.EmailQueueMaxAttempts)
	}
	if cfg.EmailQueueMaxStalled != 1 {
		t.Errorf("EmailQueueMaxStalled = %d, want 1", cfg.EmailQueueMaxStalled)
	}
	if cfg.EmailQueueKeepCompleted != 100 {
		t.Errorf("EmailQueueKeepCompleted = %d, want 100", cfg.EmailQueueKeepCompleted)
	}
	if cfg.AuthEnabled() {
		t.Error("AuthEnabled should be false without secrets")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("AUTH_JWT_SECRET", "a")
	os.Setenv("AUTH_REFRESH_SECRET", "b")
	os.Setenv("AUTH_CONFIRM_EMAIL_SECRET", "c")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if !cfg.AuthEnabled() {
		t.Error("AuthEnabled should be true with all secrets set")
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	os.Setenv("BCRYPT_COST", "40")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for BCRYPT_COST=40")
	}
}

func TestLoad_InvalidMaxStalled(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	os.Setenv("EMAIL_QUEUE_MAX_STALLED", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for EMAIL_QUEUE_MAX_STALLED=0")
	}
}

func TestLoad_SameAccessAndRefreshSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	os.Setenv("AUTH_JWT_SECRET", "same")
	os.Setenv("AUTH_REFRESH_SECRET", "same")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when access and refresh secrets are equal")
	}
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for production without secrets")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"1d12h", 36 * time.Hour},
		{"60s", time.Minute},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseDuration("xd"); err == nil {
		t.Error("ParseDuration(\"xd\") should fail")
	}
}

func TestConfig_TTLFallbacks(t *testing.T) {
	c := &Config{AuthJWTExpiresIn: "bogus"}
	if got := c.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", got)
	}
	if got := c.RefreshTTL(); got != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", got)
	}
	if got := c.ConfirmEmailTTL(); got != 24*time.Hour {
		t.Errorf("ConfirmEmailTTL = %v, want 24h", got)
	}
	if got := c.EmailQueueBackoffBase(); got != time.Minute {
		t.Errorf("EmailQueueBackoffBase = %v, want 1m", got)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	c := &Config{KafkaBrokers: " a:9092, ,b:9092 "}
	got := c.KafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil list")
	}
}
