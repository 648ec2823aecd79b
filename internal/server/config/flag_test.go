package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin",
		"-a", ":8443", "-g=:6000", "-r", "sqlite", "-d", "file:vl.db",
		"-s", "s3cr3t", "-t", "30", "-i", "http://inference:5001", "-k", "2", "-l", "debug",
		"-c", "ignored.json", "-unknown", "x",
	}

	cfg := defaults()
	require.NoError(t, parseFlags(cfg))

	assert.Equal(t, ":8443", cfg.EndpointAddrHTTP)
	assert.Equal(t, ":6000", cfg.EndpointAddrGRPC)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:vl.db", cfg.DatabaseDSN)
	assert.Equal(t, "s3cr3t", cfg.SecretKey)
	assert.Equal(t, 30*time.Minute, cfg.TokenValidityDuration)
	assert.Equal(t, "http://inference:5001", cfg.InferenceURL)
	assert.Equal(t, 2, cfg.LockoutThreshold)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func Test_parseFlags_KeepsSubMinuteTokenValidity(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := defaults()
	cfg.TokenValidityDuration = 90 * time.Second
	require.NoError(t, parseFlags(cfg))
	assert.Equal(t, 90*time.Second, cfg.TokenValidityDuration)
}

func Test_parseFlags_BadValue(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-k", "lots"}

	assert.Error(t, parseFlags(defaults()))
}
