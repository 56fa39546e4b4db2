package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipcore/sipsession/rtpconfig"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sipcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndParsesAccount(t *testing.T) {
	path := writeConfig(t, `
sipcore:
  account:
    sip_address: alice@example.com
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", cfg.Account.SIPAddress)
	assert.Equal(t, rtpconfig.MSRPRelayAuto, cfg.Account.MSRPRelay)
	assert.Equal(t, 3478, cfg.RTP.ICEStunPort)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsMissingSIPAddress(t *testing.T) {
	path := writeConfig(t, `
sipcore:
  log:
    level: info
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
sipcore:
  account:
    sip_address: alice@example.com
  log:
    level: verbose
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidMSRPRelay(t *testing.T) {
	path := writeConfig(t, `
sipcore:
  account:
    sip_address: alice@example.com
    msrp_relay: carrier-pigeon
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestRingtoneForFallsBackToDefault(t *testing.T) {
	r := RingtoneConfig{
		Default: "default.wav",
		ByURI:   map[string]string{"alice@example.com": "alice.wav"},
	}
	assert.Equal(t, "alice.wav", r.RingtoneFor("alice", "example.com"))
	assert.Equal(t, "default.wav", r.RingtoneFor("bob", "example.com"))
}
