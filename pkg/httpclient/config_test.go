package httpclient

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout"},
		{name: "negative retries", mutate: func(c *Config) { c.RetryAttempts = -1 }, wantErr: "retry_attempts"},
		{name: "retries without backoff", mutate: func(c *Config) { c.RetryBackoff = 0 }, wantErr: "retry_backoff"},
		{name: "max below base", mutate: func(c *Config) { c.MaxBackoff = time.Millisecond }, wantErr: "max_backoff"},
		{name: "no retries ignores backoff", mutate: func(c *Config) { c.RetryAttempts = 0; c.RetryBackoff = 0 }},
		{name: "negative rate", mutate: func(c *Config) { c.RequestsPerSecond = -1 }, wantErr: "requests_per_second"},
		{name: "negative burst", mutate: func(c *Config) { c.Burst = -2 }, wantErr: "burst"},
		{name: "empty user agent", mutate: func(c *Config) { c.UserAgent = "" }, wantErr: "user_agent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_Limiter(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.limiter() != nil {
		t.Fatal("expected no limiter when pacing is off")
	}

	cfg.RequestsPerSecond = 2
	l := cfg.limiter()
	if l == nil {
		t.Fatal("expected limiter")
	}
	if l.Burst() != 1 {
		t.Errorf("expected default burst 1, got %d", l.Burst())
	}
}

func TestNew(t *testing.T) {
	client, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", client.Timeout)
	}
	if _, ok := client.Transport.(*retryTransport); !ok {
		t.Errorf("expected retry transport outermost, got %T", client.Transport)
	}

	bad := DefaultConfig()
	bad.UserAgent = ""
	if c, err := New(bad); err == nil || c != nil {
		t.Fatal("expected error and nil client for invalid config")
	}
}
