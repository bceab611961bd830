package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"icmp-ping/internal/echo"
	"icmp-ping/internal/network"
	"icmp-ping/internal/stats"
	"icmp-ping/pkg/types"
)

// DefaultInterval is the spacing between consecutive probes.
const DefaultInterval = time.Second

// State is the lifecycle stage of a Session.
type State int

const (
	StateInit State = iota
	StateSend
	StateAwaitReply
	StateTerminated
	StateReport
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSend:
		return "send"
	case StateAwaitReply:
		return "await_reply"
	case StateTerminated:
		return "terminated"
	case StateReport:
		return "report"
	default:
		return "unknown"
	}
}

// Config describes one ping run.
type Config struct {
	Target      net.IP
	Identifier  uint16
	Count       int // ignored when Infinite is set
	Infinite    bool
	PayloadSize int
	Timeout     time.Duration
	Interval    time.Duration // zero selects DefaultInterval
}

// Validate checks the session parameters. It runs before any packet is sent.
func (c Config) Validate() error {
	var errs []string

	if c.Target.To4() == nil {
		errs = append(errs, fmt.Sprintf("target %q is not an IPv4 address", c.Target))
	}
	if c.PayloadSize < echo.MinPayloadSize {
		errs = append(errs, fmt.Sprintf("payload size must be >= %d, got %d", echo.MinPayloadSize, c.PayloadSize))
	}
	if !c.Infinite && c.Count <= 0 {
		errs = append(errs, fmt.Sprintf("count must be > 0, got %d", c.Count))
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be > 0")
	}
	if c.Interval < 0 {
		errs = append(errs, "interval must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid session config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Transport sends echo requests and collects their replies.
type Transport interface {
	Send(packet []byte, dst net.IP) error
	Receive(identifier, sequence uint16, timeout time.Duration) (types.EchoReply, error)
}

// Options customizes a Session. Zero values select the defaults.
type Options struct {
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	// OnOutcome is called after each probe's outcome has been recorded.
	OnOutcome func(types.ProbeOutcome)
}

// Session runs a sequence of echo probes against one target, one at a time.
type Session struct {
	cfg       Config
	transport Transport
	collector *stats.Collector
	seq       SequenceCounter
	state     State

	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	onOutcome func(types.ProbeOutcome)
}

// New creates a session. Outcomes are recorded into collector.
func New(cfg Config, transport Transport, collector *stats.Collector, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}

	s := &Session{
		cfg:       cfg,
		transport: transport,
		collector: collector,
		state:     StateInit,
		now:       opts.Now,
		sleep:     opts.Sleep,
		onOutcome: opts.OnOutcome,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	return s, nil
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return s.state
}

// Run probes until the configured count is reached or ctx is cancelled.
// Cancellation is only observed between probes; an in-flight wait always
// completes or times out first. The statistics collected so far are returned
// in every case, including when a socket error aborts the run.
func (s *Session) Run(ctx context.Context) (stats.Statistics, error) {
	logger := log.WithFields(log.Fields{
		"target": s.cfg.Target.String(),
		"id":     s.cfg.Identifier,
	})
	logger.WithFields(log.Fields{
		"count":    s.cfg.Count,
		"infinite": s.cfg.Infinite,
		"size":     s.cfg.PayloadSize,
		"timeout":  s.cfg.Timeout,
	}).Debug("Session started")

	var runErr error
	for probes := 0; ; {
		if ctx.Err() != nil {
			logger.Info("Session cancelled")
			break
		}

		outcome, err := s.probe(s.seq.Next())
		if err != nil {
			runErr = err
			break
		}
		s.collector.Record(outcome)
		if s.onOutcome != nil {
			s.onOutcome(outcome)
		}
		probes++

		if !s.cfg.Infinite && probes >= s.cfg.Count {
			break
		}
		if err := s.sleep(ctx, s.cfg.Interval); err != nil {
			logger.Info("Session cancelled")
			break
		}
	}

	s.state = StateTerminated
	summary := s.collector.Summary()
	s.state = StateReport

	logger.WithFields(log.Fields{
		"sent":     summary.Sent,
		"received": summary.Received,
	}).Debug("Session finished")
	return summary, runErr
}

// probe sends one echo request and waits for its reply. Only socket
// failures while waiting are returned as errors; send failures and timeouts
// are losses.
func (s *Session) probe(seq uint16) (types.ProbeOutcome, error) {
	outcome := types.ProbeOutcome{
		Sequence: seq,
		Target:   s.cfg.Target,
		Status:   types.OutcomeTimeout,
	}
	logger := log.WithField("seq", seq)

	s.state = StateSend
	packet, err := echo.Encode(echo.Request{
		Identifier:  s.cfg.Identifier,
		Sequence:    seq,
		PayloadSize: s.cfg.PayloadSize,
		Timestamp:   s.now(),
	})
	if err != nil {
		return outcome, fmt.Errorf("failed to encode echo request: %w", err)
	}

	if err := s.transport.Send(packet, s.cfg.Target); err != nil {
		logger.WithError(err).Warn("Echo request not sent")
		outcome.Err = err
		return outcome, nil
	}

	s.state = StateAwaitReply
	reply, err := s.transport.Receive(s.cfg.Identifier, seq, s.cfg.Timeout)
	if errors.Is(err, network.ErrTimeout) {
		logger.Debug("Echo reply timed out")
		return outcome, nil
	}
	if err != nil {
		return outcome, fmt.Errorf("probe %d: %w", seq, err)
	}

	outcome.Status = types.OutcomeSuccess
	outcome.Delay = reply.RTT()
	if outcome.Delay < 0 {
		outcome.Delay = 0
	}
	outcome.TTL = reply.TTL
	outcome.ReplySize = reply.PayloadSize
	logger.WithFields(log.Fields{
		"rtt": outcome.Delay,
		"ttl": outcome.TTL,
	}).Debug("Echo reply received")
	return outcome, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
