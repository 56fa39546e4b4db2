// Package config loads the process-wide AccountProfile and
// RTPConfiguration (§6 of spec.md) from a YAML file using viper,
// following internal/config.Load from firestige-Otus: a viper instance,
// defaults set before reading, environment overrides, then unmarshal
// into a typed struct.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/sipcore/sipsession/rtpconfig"
)

// Config is the top-level configuration file shape, rooted at
// "sipcore:" the same way firestige-Otus roots its file at
// "capture-agent:".
type Config struct {
	Account   rtpconfig.AccountProfile   `mapstructure:"account"`
	RTP       rtpconfig.RTPConfiguration `mapstructure:"rtp"`
	Ringtones RingtoneConfig             `mapstructure:"ringtones"`
	Log       LogConfig                  `mapstructure:"log"`
}

// RingtoneConfig maps (user, host) pairs to a ringtone file, with a
// fallback default — the configuration-side counterpart of §3's
// ringtone_config.get_ringtone_for_sipuri.
type RingtoneConfig struct {
	Default string            `mapstructure:"default"`
	ByURI   map[string]string `mapstructure:"by_uri"` // key: "user@host"
}

// LogConfig controls log verbosity, mirroring firestige-Otus's LogConfig
// shape. cmd/sipconsole applies Level to its own logrus logger; there is
// no output-format setting.
type LogConfig struct {
	Level string `mapstructure:"level"` // trace/debug/info/warn/error
}

type configRoot struct {
	SIPCore Config `mapstructure:"sipcore"`
}

// Load reads path (YAML) into a Config, applying defaults and
// SIPCORE_-prefixed environment overrides (e.g. SIPCORE_RTP_USE_SRTP).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg := root.SIPCore

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sipcore.account.msrp_relay", string(rtpconfig.MSRPRelayAuto))
	v.SetDefault("sipcore.rtp.ice_stun_port", 3478)
	v.SetDefault("sipcore.log.level", "info")
}

func (c *Config) validate() error {
	if c.Account.SIPAddress == "" {
		return fmt.Errorf("account.sip_address is required")
	}
	switch LogLevel(c.Log.Level) {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("invalid log.level: %s", c.Log.Level)
	}
	switch c.Account.MSRPRelay {
	case rtpconfig.MSRPRelayAuto, rtpconfig.MSRPRelaySRV, rtpconfig.MSRPRelayNone:
	default:
		return fmt.Errorf("invalid account.msrp_relay: %s", c.Account.MSRPRelay)
	}
	return nil
}

// LogLevel enumerates the valid Log.Level values.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// RingtoneFor resolves the ringtone path for a (user, host) pair,
// falling back to Default when no specific entry matches (§3).
func (r RingtoneConfig) RingtoneFor(user, host string) string {
	if path, ok := r.ByURI[user+"@"+host]; ok {
		return path
	}
	return r.Default
}
