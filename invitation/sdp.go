package invitation

// Direction is an SDP media direction attribute (§6 of spec.md).
type Direction string

const (
	DirectionSendRecv Direction = "sendrecv"
	DirectionSendOnly Direction = "sendonly"
	DirectionRecvOnly Direction = "recvonly"
	DirectionInactive Direction = "inactive"
)

// HasSend reports whether data flows from the local side in d.
func (d Direction) HasSend() bool {
	return d == DirectionSendRecv || d == DirectionSendOnly
}

// Origin is the o= line fields that must stay stable across a dialog
// (§3 invariants, §4.4).
type Origin struct {
	User        string
	ID          string
	Version     uint64
	NetType     string
	AddressType string
	Address     string
}

// Equal reports whether o and other describe the same origin identity,
// ignoring Version (§4.4 compares user/id/net_type/address_type/address
// only).
func (o Origin) Equal(other Origin) bool {
	return o.User == other.User &&
		o.ID == other.ID &&
		o.NetType == other.NetType &&
		o.AddressType == other.AddressType &&
		o.Address == other.Address
}

// SDPMedia is one m-line (§6).
type SDPMedia struct {
	Media      string // "audio", "video", "chat", ...
	Port       int    // 0 means rejected/disabled
	Transport  string // e.g. "RTP/AVP"
	Formats    []string
	Attributes []SDPAttribute
}

// SDPAttribute is a generic a= attribute; Direction-valued attributes
// (sendrecv/sendonly/recvonly/inactive) are stored with an empty Value.
type SDPAttribute struct {
	Key   string
	Value string
}

// Direction extracts the media's direction attribute, defaulting to
// sendrecv when none of the four direction attributes is present (RFC
// 4566 default).
func (m SDPMedia) Direction() Direction {
	for _, a := range m.Attributes {
		switch Direction(a.Key) {
		case DirectionSendRecv, DirectionSendOnly, DirectionRecvOnly, DirectionInactive:
			return Direction(a.Key)
		}
	}
	return DirectionSendRecv
}

// WithDirection returns a copy of m with its direction attribute
// replaced by dir (existing direction attributes are stripped first).
func (m SDPMedia) WithDirection(dir Direction) SDPMedia {
	out := m
	attrs := make([]SDPAttribute, 0, len(m.Attributes)+1)
	for _, a := range m.Attributes {
		switch Direction(a.Key) {
		case DirectionSendRecv, DirectionSendOnly, DirectionRecvOnly, DirectionInactive:
			continue
		}
		attrs = append(attrs, a)
	}
	attrs = append(attrs, SDPAttribute{Key: string(dir)})
	out.Attributes = attrs
	return out
}

// IsActive reports whether the m-line describes a live stream (nonzero
// port), per the "active-media set" comparisons in §4.4.
func (m SDPMedia) IsActive() bool {
	return m.Port != 0
}

// SDPSession is the session-level SDP description exchanged as offer or
// answer (§6).
type SDPSession struct {
	Version    uint64
	Origin     Origin
	Connection string // c= connection address
	StartTime  uint64
	StopTime   uint64
	Media      []SDPMedia
}

// Clone returns a deep copy of s, safe to mutate independently.
func (s *SDPSession) Clone() *SDPSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Media = make([]SDPMedia, len(s.Media))
	for i, m := range s.Media {
		mc := m
		mc.Formats = append([]string(nil), m.Formats...)
		mc.Attributes = append([]SDPAttribute(nil), m.Attributes...)
		out.Media[i] = mc
	}
	return &out
}

// ActiveMediaKinds returns the set of distinct m-line kinds with a
// nonzero port, used by the reinvite validator's "new stream kind
// appears" comparison (§4.4).
func (s *SDPSession) ActiveMediaKinds() map[string]bool {
	kinds := make(map[string]bool)
	if s == nil {
		return kinds
	}
	for _, m := range s.Media {
		if m.IsActive() {
			kinds[m.Media] = true
		}
	}
	return kinds
}
