package config

import (
	"testing"

	"github.com/flexprice/freemium/internal/types"
	"github.com/stretchr/testify/assert"
)

func validConfig() Configuration {
	c := *GetDefaultConfig()
	c.Postgres = PostgresConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "freemium",
		DBName:  "freemium",
		SSLMode: "disable",
	}
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Configuration)
		wantErr bool
	}{
		{name: "defaults with postgres", mutate: func(c *Configuration) {}},
		{
			name:    "missing expired plan",
			mutate:  func(c *Configuration) { c.Billing.ExpiredPlanID = "" },
			wantErr: true,
		},
		{
			name:    "negative grace",
			mutate:  func(c *Configuration) { c.Billing.DaysGrace = -1 },
			wantErr: true,
		},
		{
			name:    "bad recipient",
			mutate:  func(c *Configuration) { c.Billing.AdminReportRecipients = []string{"not-an-email"} },
			wantErr: true,
		},
		{
			name:    "stripe enabled without key",
			mutate:  func(c *Configuration) { c.Stripe.Enabled = true },
			wantErr: true,
		},
		{
			name: "stripe enabled with key",
			mutate: func(c *Configuration) {
				c.Stripe.Enabled = true
				c.Stripe.SecretKey = "sk_test_123"
			},
		},
		{
			name:    "missing run mode",
			mutate:  func(c *Configuration) { c.Deployment.Mode = types.RunMode("") },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	c := validConfig()
	assert.Equal(t, "user=freemium password= dbname=freemium host=localhost port=5432 sslmode=disable", c.Postgres.GetDSN())
}
