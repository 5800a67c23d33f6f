package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/karhula/driveproxy/internal/config"
	"github.com/karhula/driveproxy/internal/gdrive"
)

func TestDriveTuning(t *testing.T) {
	d := &config.DriveConfig{
		MaxListPages: 5,
		Retry: config.RetrySettings{
			List:     config.OperationRetry{Attempts: 2, AttemptTimeout: "4s"},
			Download: config.OperationRetry{Attempts: 1},
			Upload:   config.OperationRetry{AttemptTimeout: "45s"},
		},
	}

	got := driveTuning(d)

	assert.Equal(t, gdrive.Tuning{
		List:         gdrive.PolicyOverride{Attempts: 2, AttemptTimeout: 4 * time.Second},
		Download:     gdrive.PolicyOverride{Attempts: 1},
		Upload:       gdrive.PolicyOverride{AttemptTimeout: 45 * time.Second},
		MaxListPages: 5,
	}, got)
}

func TestDriveTuning_EmptyConfigIsZero(t *testing.T) {
	assert.Equal(t, gdrive.Tuning{}, driveTuning(&config.DriveConfig{}))
}

func TestCredentialsTable(t *testing.T) {
	creds := credentialsTable([]config.TenantConfig{
		{
			Name: "acme",
			Users: []config.UserConfig{
				{Login: "alice", PasswordSHA256: "aa"},
				{Login: "bob", PasswordSHA256: "bb"},
			},
		},
		{Name: "globex"},
	})

	assert.Equal(t, "aa", creds["acme"]["alice"])
	assert.Equal(t, "bb", creds["acme"]["bob"])
	assert.Empty(t, creds["globex"])
}
