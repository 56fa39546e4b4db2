// Package mediastream implements the MediaStream abstraction (§4.2 of
// spec.md / component C1): a polymorphic wrapper that hides RTP/codec
// details behind a small capability set a Session drives to build m-lines
// and to start/stop/redirect the underlying audio engine.
//
// It follows pkg/media.MediaSessionInterface and pkg/rtp.SessionRTP from
// the soft_phone codebase (RTP packet types, direction handling, DTMF)
// but narrows the surface to exactly what §4.2 names, since the actual
// RTP/audio transport is an out-of-scope external collaborator (§1
// Non-goals) represented here by the Engine interface.
package mediastream

import (
	"errors"
	"time"

	"github.com/pion/rtp"

	"github.com/sipcore/sipsession/invitation"
)

// DTMFDigit is a telephone keypad tone, matching pkg/media.DTMFDigit's
// value range (0-9, *, #, A-D).
type DTMFDigit uint8

const (
	DTMF0 DTMFDigit = iota
	DTMF1
	DTMF2
	DTMF3
	DTMF4
	DTMF5
	DTMF6
	DTMF7
	DTMF8
	DTMF9
	DTMFStar
	DTMFPound
	DTMFA
	DTMFB
	DTMFC
	DTMFD
)

// ErrStreamNotReady is returned when an operation requires an active
// stream but the stream has not been started, or has already stopped
// (§7 StreamNotReady).
var ErrStreamNotReady = errors.New("mediastream: stream not ready")

// ErrAlreadyActive is returned by Start when the stream is already
// running (§4.2).
var ErrAlreadyActive = errors.New("mediastream: stream already active")

// Kind tags a Stream's media type, supporting the tagged-variant design
// called out in spec.md §9 ("Stream = Audio(AudioStream) | Chat(...) |
// ..."). Only Audio is implemented; Chat/Desktop are reserved for future
// stream kinds that can implement the same Stream interface.
type Kind string

const (
	KindAudio Kind = "audio"
)

// Engine is the out-of-scope RTP/audio transport a Stream drives.
// A real implementation opens sockets, encodes/decodes audio and
// transmits RTP/RTCP; the session core never does any of that directly.
type Engine interface {
	// Attach connects the stream's RTP output to the audio mixer/device.
	Attach(s Stream) error
	// Detach disconnects the stream from the mixer without stopping it
	// (used for hold, where the stream stays negotiated but silenced).
	Detach(s Stream) error
}

// RawPacketSink is implemented by engines that surface decoded RTP
// packets for a stream, matching pkg/media.MediaSessionInterface's
// SetRawPacketHandler. DTMF events arrive as AudioTransportGotDTMF-style
// telephone-event packets the caller inspects via pt/payload.
type RawPacketSink interface {
	SetRawPacketHandler(s Stream, handler func(*rtp.Packet))
}

// Stream is the common capability set every stream kind implements
// (§4.2, §9).
type Stream interface {
	Kind() Kind
	// GetLocalMedia produces this stream's m-line. When dir is non-nil,
	// it overrides the direction the m-line is built with (used by
	// hold/unhold offers and by answers); otherwise the stream's
	// current direction is used.
	GetLocalMedia(isOffer bool, dir *invitation.Direction) invitation.SDPMedia
	Start(localSDP, remoteSDP *invitation.SDPSession, index int) error
	Stop() error
	UpdateDirection(dir invitation.Direction) error
	IsActive() bool
	Direction() invitation.Direction
}

// AudioStream is the audio Stream implementation (§4.2, §6 AudioStream).
type AudioStream struct {
	engine Engine

	payloadType    uint8
	formats        []string
	localAddr      string
	localPort      int
	dtmfEnabled    bool
	dtmfPayload    uint8

	active    bool
	direction invitation.Direction
}

// NewAudioStream constructs an AudioStream bound to the given engine and
// local RTP endpoint. localPort == 0 means "not yet allocated" and is an
// error to Start with.
func NewAudioStream(engine Engine, localAddr string, localPort int, payloadType uint8, formats []string, dtmfEnabled bool, dtmfPayload uint8) *AudioStream {
	return &AudioStream{
		engine:      engine,
		payloadType: payloadType,
		formats:     formats,
		localAddr:   localAddr,
		localPort:   localPort,
		dtmfEnabled: dtmfEnabled,
		dtmfPayload: dtmfPayload,
		direction:   invitation.DirectionSendRecv,
	}
}

func (a *AudioStream) Kind() Kind { return KindAudio }

// GetLocalMedia builds the audio m-line with direction dir, or the
// stream's current direction when dir is nil. isOffer is not consulted:
// the hold and answer direction mapping (sdpneg.HoldDirection,
// sdpneg.AnswerDirection) is done by the caller, which passes the result
// as dir.
func (a *AudioStream) GetLocalMedia(isOffer bool, dir *invitation.Direction) invitation.SDPMedia {
	d := a.direction
	if dir != nil {
		d = *dir
	}
	formats := append([]string(nil), a.formats...)
	if a.dtmfEnabled {
		formats = append(formats, dtmfFormat(a.dtmfPayload))
	}
	port := a.localPort
	return invitation.SDPMedia{
		Media:     string(KindAudio),
		Port:      port,
		Transport: "RTP/AVP",
		Formats:   formats,
		Attributes: []invitation.SDPAttribute{
			{Key: string(d)},
		},
	}
}

func dtmfFormat(pt uint8) string {
	return itoa(int(pt))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Start activates the stream against the negotiated local/remote m-lines
// at index and attaches it to the engine's mixer (§4.5 update_audio).
func (a *AudioStream) Start(localSDP, remoteSDP *invitation.SDPSession, index int) error {
	if a.active {
		return ErrAlreadyActive
	}
	if a.localPort == 0 {
		return errors.New("mediastream: local RTP port not allocated")
	}
	if index < 0 || index >= len(localSDP.Media) || index >= len(remoteSDP.Media) {
		return errors.New("mediastream: index out of range for negotiated SDP")
	}
	a.direction = localSDP.Media[index].Direction()
	a.active = true
	if a.engine != nil {
		return a.engine.Attach(a)
	}
	return nil
}

// Stop deactivates the stream and detaches it from the engine.
func (a *AudioStream) Stop() error {
	if !a.active {
		return nil
	}
	a.active = false
	if a.engine != nil {
		return a.engine.Detach(a)
	}
	return nil
}

// UpdateDirection changes the stream's negotiated direction without
// restarting it (§4.1 hold/unhold, §4.5 update_audio).
func (a *AudioStream) UpdateDirection(dir invitation.Direction) error {
	if !a.active {
		return ErrStreamNotReady
	}
	a.direction = dir
	return nil
}

func (a *AudioStream) IsActive() bool { return a.active }

func (a *AudioStream) Direction() invitation.Direction { return a.direction }

// MixerControl is implemented by streams that can be silenced/resumed
// against the audio mixer without tearing the RTP session down, used by
// hold/unhold (§4.1: "detach audio from the engine's mixer" /
// "reattach audio").
type MixerControl interface {
	DetachFromMixer() error
	AttachToMixer() error
}

// DetachFromMixer silences the stream for hold without stopping RTP.
func (a *AudioStream) DetachFromMixer() error {
	if !a.active || a.engine == nil {
		return nil
	}
	return a.engine.Detach(a)
}

// AttachToMixer resumes a stream previously silenced by DetachFromMixer.
func (a *AudioStream) AttachToMixer() error {
	if !a.active || a.engine == nil {
		return nil
	}
	return a.engine.Attach(a)
}

// SendDTMF transmits a DTMF digit over the active stream (§4.2, §7
// StreamNotReady).
func (a *AudioStream) SendDTMF(digit DTMFDigit, duration time.Duration) error {
	if !a.active {
		return ErrStreamNotReady
	}
	if !a.dtmfEnabled {
		return errors.New("mediastream: DTMF not enabled on this stream")
	}
	if a.engine == nil {
		return nil
	}
	if sender, ok := a.engine.(DTMFEngine); ok {
		return sender.SendDTMF(a, digit, duration)
	}
	return nil
}

// DTMFEngine is implemented by engines that can transmit DTMF (in-band
// or via telephone-event RTP payloads, per pkg/rtp's DTMF payload
// handling) over an active stream.
type DTMFEngine interface {
	SendDTMF(s Stream, digit DTMFDigit, duration time.Duration) error
}
