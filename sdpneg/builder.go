// Package sdpneg implements SdpBuilder/Negotiator (§2 C2, §4.1
// make_next_sdp, §4.4 reinvite validation). It follows the split between
// pkg/media_sdp's builder.go (constructing local offers) and handler.go
// (interpreting a remote offer) from the soft_phone codebase, and
// marshals wire SDP with github.com/pion/sdp/v3 the same way.
package sdpneg

import (
	"fmt"
	"net"
	"time"

	"github.com/pion/sdp/v3"

	"github.com/sipcore/sipsession/invitation"
)

// ErrProtocolViolation is returned when a proposed SDP fails the §4.4
// version/origin rules; callers translate it into a 488 response.
var ErrProtocolViolation = fmt.Errorf("sdpneg: protocol violation")

// NewOffer builds the initial local offer for a new outgoing session
// (§4.1 Session.new): one m-line per requested stream, connection set to
// the local RTP address, version 0.
func NewOffer(localAddr string, origin invitation.Origin, streams []invitation.SDPMedia) *invitation.SDPSession {
	origin.Address = localAddr
	return &invitation.SDPSession{
		Version:    0,
		Origin:     origin,
		Connection: localAddr,
		Media:      streams,
	}
}

// MakeNextSDP implements §4.1's make_next_sdp: start from the currently
// active local SDP, bump the version, keep origin fields stable, and
// replace the stream at audioIndex with mediaAtIndex (already built by
// the caller's MediaStream.GetLocalMedia, per the component boundary in
// §4.2/§9 — this function only owns SDP-session bookkeeping, not codec
// selection).
func MakeNextSDP(active *invitation.SDPSession, audioIndex int, mediaAtIndex invitation.SDPMedia) *invitation.SDPSession {
	next := active.Clone()
	next.Version = active.Version + 1
	if audioIndex >= 0 && audioIndex < len(next.Media) {
		next.Media[audioIndex] = mediaAtIndex
	}
	return next
}

// AppendMedia implements the add_audio reinvite offer (§4.1 ADD_AUDIO):
// bump the version and append a new m-line at the next free index,
// leaving every existing m-line untouched.
func AppendMedia(active *invitation.SDPSession, newMedia invitation.SDPMedia) *invitation.SDPSession {
	next := active.Clone()
	next.Version = active.Version + 1
	next.Media = append(next.Media, newMedia)
	return next
}

// HoldDirection implements the direction-mapping rule in §4.1: for an
// offer, a stream whose current direction allows sending maps
// hold->sendonly / active->sendrecv; a stream that cannot send maps
// hold->inactive / active->recvonly.
func HoldDirection(current invitation.Direction, hold bool) invitation.Direction {
	if current.HasSend() {
		if hold {
			return invitation.DirectionSendOnly
		}
		return invitation.DirectionSendRecv
	}
	if hold {
		return invitation.DirectionInactive
	}
	return invitation.DirectionRecvOnly
}

// AnswerDirection derives the local answer direction from the remote
// offer's direction for the same m-line (RFC 3264 §6.1), as
// make_next_sdp(is_offer=false) does: inactive is answered inactive,
// sendonly recvonly, recvonly sendonly (inactive when the local side
// cannot send), and sendrecv sendrecv (recvonly when the local side
// cannot send).
func AnswerDirection(remote invitation.Direction, localCanSend bool) invitation.Direction {
	switch remote {
	case invitation.DirectionInactive:
		return invitation.DirectionInactive
	case invitation.DirectionSendOnly:
		// remote sends, so we receive; we answer recvonly unless we
		// cannot send at all, in which case it's still recvonly.
		return invitation.DirectionRecvOnly
	case invitation.DirectionRecvOnly:
		if localCanSend {
			return invitation.DirectionSendOnly
		}
		return invitation.DirectionInactive
	default: // sendrecv
		if localCanSend {
			return invitation.DirectionSendRecv
		}
		return invitation.DirectionRecvOnly
	}
}

// BuildAcceptAnswer implements §4.1 accept(): for every remote m-line at
// an index present in negotiated, the answer carries that negotiated
// media (built by the caller from the corresponding MediaStream); every
// other remote m-line is answered "reject by port zero" — same
// transport/formats/attributes, port 0.
func BuildAcceptAnswer(localAddr string, origin invitation.Origin, remote *invitation.SDPSession, negotiated map[int]invitation.SDPMedia) *invitation.SDPSession {
	origin.Address = localAddr
	media := make([]invitation.SDPMedia, len(remote.Media))
	for i, rm := range remote.Media {
		if m, ok := negotiated[i]; ok {
			media[i] = m
			continue
		}
		media[i] = invitation.SDPMedia{
			Media:      rm.Media,
			Port:       0,
			Transport:  rm.Transport,
			Formats:    append([]string(nil), rm.Formats...),
			Attributes: append([]invitation.SDPAttribute(nil), rm.Attributes...),
		}
	}
	return &invitation.SDPSession{
		Version:    0,
		Origin:     origin,
		Connection: localAddr,
		StartTime:  remote.StartTime,
		StopTime:   remote.StopTime,
		Media:      media,
	}
}

// Marshal renders s as wire-format SDP using pion/sdp/v3, the same
// library pkg/media_sdp uses to build offers/answers.
func Marshal(s *invitation.SDPSession) ([]byte, error) {
	desc := toPion(s)
	return desc.Marshal()
}

// Unmarshal parses wire-format SDP into the domain SDPSession type.
func Unmarshal(data []byte) (*invitation.SDPSession, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("sdpneg: unmarshal: %w", err)
	}
	return fromPion(&desc)
}

func toPion(s *invitation.SDPSession) *sdp.SessionDescription {
	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       nz(s.Origin.User),
			SessionID:      idAsUint64(s.Origin.ID),
			SessionVersion: s.Version,
			NetworkType:    nzDefault(s.Origin.NetType, "IN"),
			AddressType:    nzDefault(s.Origin.AddressType, "IP4"),
			UnicastAddress: s.Origin.Address,
		},
		SessionName: "-",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: nzDefault(s.Origin.NetType, "IN"),
			AddressType: nzDefault(s.Origin.AddressType, "IP4"),
			Address:     &sdp.Address{Address: s.Connection},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: s.StartTime, StopTime: s.StopTime}},
		},
	}
	for _, m := range s.Media {
		desc.MediaDescriptions = append(desc.MediaDescriptions, toPionMedia(m))
	}
	return desc
}

func toPionMedia(m invitation.SDPMedia) *sdp.MediaDescription {
	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   m.Media,
			Port:    sdp.RangedPort{Value: m.Port},
			Protos:  []string{"RTP", "AVP"},
			Formats: m.Formats,
		},
	}
	if m.Transport != "" {
		md.MediaName.Protos = splitTransport(m.Transport)
	}
	for _, a := range m.Attributes {
		md.Attributes = append(md.Attributes, sdp.Attribute{Key: a.Key, Value: a.Value})
	}
	return md
}

func fromPion(desc *sdp.SessionDescription) (*invitation.SDPSession, error) {
	out := &invitation.SDPSession{
		Version: desc.Origin.SessionVersion,
		Origin: invitation.Origin{
			User:        desc.Origin.Username,
			ID:          fmt.Sprintf("%d", desc.Origin.SessionID),
			Version:     desc.Origin.SessionVersion,
			NetType:     desc.Origin.NetworkType,
			AddressType: desc.Origin.AddressType,
			Address:     desc.Origin.UnicastAddress,
		},
	}
	if desc.ConnectionInformation != nil && desc.ConnectionInformation.Address != nil {
		out.Connection = desc.ConnectionInformation.Address.Address
	}
	if len(desc.TimeDescriptions) > 0 {
		out.StartTime = desc.TimeDescriptions[0].Timing.StartTime
		out.StopTime = desc.TimeDescriptions[0].Timing.StopTime
	}
	for _, md := range desc.MediaDescriptions {
		m := invitation.SDPMedia{
			Media:     md.MediaName.Media,
			Port:      md.MediaName.Port.Value,
			Transport: joinTransport(md.MediaName.Protos),
			Formats:   append([]string(nil), md.MediaName.Formats...),
		}
		for _, a := range md.Attributes {
			m.Attributes = append(m.Attributes, invitation.SDPAttribute{Key: a.Key, Value: a.Value})
		}
		out.Media = append(out.Media, m)
	}
	return out, nil
}

func splitTransport(t string) []string {
	// "RTP/AVP" -> ["RTP", "AVP"]
	var parts []string
	cur := ""
	for _, r := range t {
		if r == '/' {
			parts = append(parts, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	parts = append(parts, cur)
	return parts
}

func joinTransport(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}

func nz(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func nzDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func idAsUint64(s string) uint64 {
	var v uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return uint64(time.Now().UnixNano())
		}
		v = v*10 + uint64(r-'0')
	}
	if v == 0 {
		return uint64(time.Now().UnixNano())
	}
	return v
}

// LocalRTPAddress resolves the address RTPConfiguration designates for
// new media sessions, falling back to the first non-loopback interface
// address the way pkg/media_sdp.getLocalHostname's callers do when no
// explicit address is configured.
func LocalRTPAddress(configured string) string {
	if configured != "" {
		return configured
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
