// Command sipconsole is a minimal terminal front end for the session
// core, grounded in original_source/pypjua/clients/console.py (a
// readline-driven console that prints Session* notifications) and in
// firestige-Otus's command/config wiring. It is an external collaborator
// per spec.md §1: it only issues Session calls and prints notifications
// off the bus, and implements none of the negotiation logic itself.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"github.com/sipcore/sipsession/config"
	"github.com/sipcore/sipsession/notifybus"
	"github.com/sipcore/sipsession/session"
	"github.com/sipcore/sipsession/sessionmanager"
)

// console holds the bits of session state the terminal front end needs
// to turn typed commands into Session calls. It never negotiates SDP or
// touches an Invitation directly.
type console struct {
	mgr     *sessionmanager.Manager
	log     *logrus.Entry
	out     io.Writer
	current *session.Session
}

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	cfgPath := "sipconsole.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.WithError(err).Warn("no usable config file; continuing with defaults")
		cfg = &config.Config{}
	}
	if lvl, lerr := logrus.ParseLevel(cfg.Log.Level); lerr == nil {
		logger.SetLevel(lvl)
	}

	bus := notifybus.New()
	mgr := sessionmanager.New(sessionmanager.Options{
		Bus:       bus,
		RTPConfig: cfg.RTP,
		Logger:    nil, // nil: the manager falls back to a no-op logger; this console's logrus logger is separate
	})

	c := &console{mgr: mgr, log: logger.WithField("component", "sipconsole"), out: os.Stdout}
	bus.SubscribeAll(c.printNotification)

	rl, err := readline.New("sipconsole> ")
	if err != nil {
		logger.WithError(err).Fatal("readline init failed")
	}
	defer rl.Close()

	fmt.Fprintln(c.out, "sipconsole ready. Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF (Ctrl-D) or readline.ErrInterrupt (Ctrl-C)
			break
		}
		c.dispatch(strings.TrimSpace(line))
	}
}

func (c *console) dispatch(line string) {
	if line == "" {
		return
	}
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "help":
		c.printHelp()
	case "hold":
		err = c.withCurrent(func(s *session.Session) error { return s.Hold() })
	case "unhold":
		err = c.withCurrent(func(s *session.Session) error { return s.Unhold() })
	case "bye", "terminate":
		err = c.withCurrent(func(s *session.Session) error { return s.Terminate() })
	case "reject":
		err = c.withCurrent(func(s *session.Session) error { return s.Reject() })
	case "accept":
		err = c.withCurrent(func(s *session.Session) error { return s.Accept(true) })
	case "add-audio":
		err = c.withCurrent(func(s *session.Session) error { return s.AddAudio() })
	case "accept-proposal":
		err = c.withCurrent(func(s *session.Session) error { return s.AcceptProposal() })
	case "reject-proposal":
		err = c.withCurrent(func(s *session.Session) error { return s.RejectProposal() })
	case "status":
		c.printStatus()
	case "call":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: call <sip-uri>")
			return
		}
		fmt.Fprintln(c.out, "call: placing an outgoing call requires a transport-specific Invitation; not wired in this console build")
	case "quit", "exit":
		os.Exit(0)
	default:
		fmt.Fprintf(c.out, "unknown command %q, type 'help'\n", cmd)
		return
	}
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}

func (c *console) withCurrent(f func(*session.Session) error) error {
	if c.current == nil {
		return fmt.Errorf("no active session")
	}
	return f(c.current)
}

func (c *console) printStatus() {
	if c.current == nil {
		fmt.Fprintln(c.out, "no active session")
		return
	}
	fmt.Fprintf(c.out, "session %s: %s\n", c.current.ID(), c.current.Effective())
}

func (c *console) printHelp() {
	fmt.Fprintln(c.out, "commands: call <uri>, accept, reject, hold, unhold, add-audio,")
	fmt.Fprintln(c.out, "          accept-proposal, reject-proposal, bye, status, quit")
}

// printNotification renders a Notification the way the original
// console's handler functions printed "Ringing...", "Call established",
// "On hold", etc., keyed by Kind instead of a dynamically dispatched
// handler name.
func (c *console) printNotification(n notifybus.Notification) {
	switch n.Kind {
	case notifybus.SessionNewIncoming:
		fmt.Fprintln(c.out, "Incoming call...")
	case notifybus.SessionNewOutgoing:
		fmt.Fprintln(c.out, "Calling...")
	case notifybus.SessionGotRingIndication:
		fmt.Fprintln(c.out, "Ringing...")
	case notifybus.SessionDidStart:
		fmt.Fprintln(c.out, "Call established")
	case notifybus.SessionGotHoldRequest:
		data, _ := n.Data.(session.HoldData)
		fmt.Fprintf(c.out, "On hold (by %s)\n", data.Originator)
	case notifybus.SessionGotUnholdRequest:
		data, _ := n.Data.(session.HoldData)
		fmt.Fprintf(c.out, "Resumed (by %s)\n", data.Originator)
	case notifybus.SessionGotStreamProposal:
		data, _ := n.Data.(session.StreamProposalData)
		fmt.Fprintf(c.out, "Stream proposal from %s (audio=%v)\n", data.Originator, data.HasAudio)
	case notifybus.SessionWillEnd:
		fmt.Fprintln(c.out, "Ending call...")
	case notifybus.SessionDidFail:
		data, _ := n.Data.(session.DidFailData)
		fmt.Fprintf(c.out, "Call failed: %s\n", data.Reason)
	case notifybus.SessionDidEnd:
		fmt.Fprintln(c.out, "Call ended")
		c.current = nil
	}
}
