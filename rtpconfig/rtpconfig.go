// Package rtpconfig defines the configuration value types the session
// core consumes from its external collaborators (§6 Configuration
// ingress): AccountProfile, produced by CLI/config parsing, and
// RTPConfiguration, the shared immutable snapshot each Session captures
// a copy of at construction (§3 Session.rtp_options, §9 "Session is
// present... captures a copy").
package rtpconfig

// MSRPRelay selects how MSRP relay discovery is performed (§6). Carried
// from AccountProfile even though MSRP itself is out of scope for the
// session core (§1 Non-goals list SIP transport/media beyond audio);
// AccountProfile still needs to round-trip the full account schema the
// external config loader produces.
type MSRPRelay string

const (
	MSRPRelayAuto MSRPRelay = "auto"
	MSRPRelaySRV  MSRPRelay = "srv"
	MSRPRelayNone MSRPRelay = "none"
)

// AccountProfile is produced by configuration/CLI parsing and consumed
// by the core to place outgoing calls (§6).
type AccountProfile struct {
	SIPAddress     string    `mapstructure:"sip_address"`
	Password       string    `mapstructure:"password"`
	DisplayName    string    `mapstructure:"display_name"`
	OutboundProxy  string    `mapstructure:"outbound_proxy"` // empty means "none"
	MSRPRelay      MSRPRelay `mapstructure:"msrp_relay"`
	MSRPRelayHost  string    `mapstructure:"msrp_relay_host"` // set when MSRPRelay is neither auto nor none and names an explicit host:port
}

// RTPConfiguration is the shared, process-wide RTP/media transport
// configuration (§3, §6). A Session captures a value copy of this at
// construction time, so later mutation of the manager's configuration
// never affects sessions already in flight — matching
// original_source/sipsimple/session.py's
// `self.rtp_options = self.session_manager.rtp_config.__dict__.copy()`.
type RTPConfiguration struct {
	LocalRTPAddress string `mapstructure:"local_rtp_address"`
	UseSRTP         bool   `mapstructure:"use_srtp"`
	SRTPForced      bool   `mapstructure:"srtp_forced"`
	UseICE          bool   `mapstructure:"use_ice"`
	ICEStunAddress  string `mapstructure:"ice_stun_address"`
	ICEStunPort     int    `mapstructure:"ice_stun_port"`
}

// DefaultRTPConfiguration mirrors RTPConfiguration()'s defaults in the
// original source (no SRTP, no ICE, default STUN port 3478).
func DefaultRTPConfiguration() RTPConfiguration {
	return RTPConfiguration{
		ICEStunPort: 3478,
	}
}
