package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		StoreDriver:        "memory",
		Env:                "development",
		PaymentWindow:      24 * time.Hour,
		ProviderEditWindow: 12 * time.Hour,
		SweepInterval:      time.Minute,
		SweepBatchSize:     200,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"zero payment window", func(c *Config) { c.PaymentWindow = 0 }, "PAYMENT_WINDOW"},
		{"negative edit window", func(c *Config) { c.ProviderEditWindow = -time.Hour }, "PROVIDER_EDIT_WINDOW"},
		{"sweep slower than a minute", func(c *Config) { c.SweepInterval = 61 * time.Second }, "SWEEP_INTERVAL"},
		{"sweep disabled", func(c *Config) { c.SweepInterval = 0 }, "SWEEP_INTERVAL"},
		{"empty batch", func(c *Config) { c.SweepBatchSize = 0 }, "SWEEP_BATCH_SIZE"},
		{"unknown store", func(c *Config) { c.StoreDriver = "postgres" }, "STORE_DRIVER"},
		{"production without stripe", func(c *Config) { c.Env = "production"; c.JWTSecret = "s" }, "STRIPE_KEY"},
		{"production without jwt secret", func(c *Config) { c.Env = "production"; c.StripeKey = "sk" }, "JWT_SECRET"},
	}
	for _, tc := range cases {
		t.Run("Given "+tc.name+" When validated", func(t *testing.T) {
			// Given
			c := validConfig()
			tc.mutate(&c)

			// When
			err := c.Validate()

			// Then
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tc.wantErr, err)
			}
		})
	}
}
