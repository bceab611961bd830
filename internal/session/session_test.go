package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/icmp"

	"icmp-ping/internal/network"
	"icmp-ping/internal/stats"
	"icmp-ping/pkg/types"
)

// fakeTransport answers probes from a per-sequence script.
type fakeTransport struct {
	clock   *time.Time
	rtt     time.Duration
	lost    map[uint16]bool
	sendErr map[uint16]error
	recvErr error

	sent      [][]byte
	sentSeqs  []uint16
	sentIDs   []uint16
	received  int
	timeouts  []time.Duration
	lastSentT time.Time
}

func (f *fakeTransport) Send(packet []byte, dst net.IP) error {
	msg, err := icmp.ParseMessage(1, packet)
	if err != nil {
		return err
	}
	echoBody := msg.Body.(*icmp.Echo)
	seq := uint16(echoBody.Seq)
	if err := f.sendErr[seq]; err != nil {
		return err
	}
	f.sent = append(f.sent, packet)
	f.sentSeqs = append(f.sentSeqs, seq)
	f.sentIDs = append(f.sentIDs, uint16(echoBody.ID))
	f.lastSentT = *f.clock
	return nil
}

func (f *fakeTransport) Receive(id, seq uint16, timeout time.Duration) (types.EchoReply, error) {
	f.timeouts = append(f.timeouts, timeout)
	if f.recvErr != nil {
		return types.EchoReply{}, f.recvErr
	}
	if f.lost[seq] {
		*f.clock = f.clock.Add(timeout)
		return types.EchoReply{}, network.ErrTimeout
	}
	*f.clock = f.clock.Add(f.rtt)
	f.received++
	return types.EchoReply{
		Type:        0,
		Identifier:  id,
		Sequence:    seq,
		TTL:         64,
		PayloadSize: 8,
		SentAt:      f.lastSentT,
		ReceivedAt:  *f.clock,
	}, nil
}

type harness struct {
	clock     time.Time
	transport *fakeTransport
	collector *stats.Collector
	sleeps    []time.Duration
	outcomes  []types.ProbeOutcome
}

func newHarness() *harness {
	h := &harness{clock: time.Unix(1700000000, 0), collector: stats.NewCollector()}
	h.transport = &fakeTransport{
		clock:   &h.clock,
		rtt:     3 * time.Millisecond,
		lost:    map[uint16]bool{},
		sendErr: map[uint16]error{},
	}
	return h
}

func (h *harness) options() Options {
	return Options{
		Now: func() time.Time { return h.clock },
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			h.clock = h.clock.Add(d)
			return ctx.Err()
		},
		OnOutcome: func(o types.ProbeOutcome) { h.outcomes = append(h.outcomes, o) },
	}
}

func baseConfig() Config {
	return Config{
		Target:      net.IPv4(127, 0, 0, 1),
		Identifier:  0x4d2,
		Count:       4,
		PayloadSize: 8,
		Timeout:     time.Second,
	}
}

func TestRun_AllReplies(t *testing.T) {
	h := newHarness()
	s, err := New(baseConfig(), h.transport, h.collector, h.options())
	require.NoError(t, err)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, stats.Statistics{Sent: 4, Received: 4, HasRTT: true, MinMs: 3, MaxMs: 3, AvgMs: 3}, summary)
	assert.Equal(t, []uint16{0, 1, 2, 3}, h.transport.sentSeqs)
	assert.Equal(t, []uint16{0x4d2, 0x4d2, 0x4d2, 0x4d2}, h.transport.sentIDs)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, h.sleeps)
	assert.Equal(t, StateReport, s.State())

	require.Len(t, h.outcomes, 4)
	for i, o := range h.outcomes {
		assert.True(t, o.Success())
		assert.Equal(t, uint16(i), o.Sequence)
		assert.Equal(t, 3*time.Millisecond, o.Delay)
		assert.Equal(t, uint8(64), o.TTL)
		assert.Equal(t, 8, o.ReplySize)
	}
}

func TestRun_AllTimeouts(t *testing.T) {
	h := newHarness()
	h.transport.lost = map[uint16]bool{0: true, 1: true, 2: true}
	cfg := baseConfig()
	cfg.Count = 3

	s, err := New(cfg, h.transport, h.collector, h.options())
	require.NoError(t, err)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Sent)
	assert.Equal(t, 0, summary.Received)
	assert.Equal(t, 3, summary.Lost)
	assert.Equal(t, 100.0, summary.LossPercent)
	assert.False(t, summary.HasRTT)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, h.transport.timeouts)
	for _, o := range h.outcomes {
		assert.Equal(t, types.OutcomeTimeout, o.Status)
		assert.NoError(t, o.Err)
	}
}

func TestRun_SendFailureIsLoss(t *testing.T) {
	h := newHarness()
	h.transport.sendErr[1] = errors.New("network is unreachable")

	s, err := New(baseConfig(), h.transport, h.collector, h.options())
	require.NoError(t, err)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Sent)
	assert.Equal(t, 3, summary.Received)
	assert.Error(t, h.outcomes[1].Err)
	assert.Equal(t, []uint16{0, 2, 3}, h.transport.sentSeqs)
	assert.Len(t, h.transport.timeouts, 3)
}

func TestRun_InfiniteUntilCancelled(t *testing.T) {
	h := newHarness()
	cfg := baseConfig()
	cfg.Infinite = true
	cfg.Count = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := h.options()
	opts.OnOutcome = func(o types.ProbeOutcome) {
		h.outcomes = append(h.outcomes, o)
		if len(h.outcomes) == 6 {
			cancel()
		}
	}

	s, err := New(cfg, h.transport, h.collector, opts)
	require.NoError(t, err)

	summary, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Sent)
	assert.Equal(t, 6, summary.Received)
	assert.Equal(t, []uint16{0, 1, 2, 3, 4, 5}, h.transport.sentSeqs)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(baseConfig(), h.transport, h.collector, h.options())
	require.NoError(t, err)

	summary, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, h.transport.sent)
}

func TestRun_CancelDuringProbeCompletesIt(t *testing.T) {
	h := newHarness()
	h.transport.lost = map[uint16]bool{0: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrapped := &cancellingTransport{fakeTransport: h.transport, cancel: cancel}
	s, err := New(baseConfig(), wrapped, h.collector, h.options())
	require.NoError(t, err)

	summary, err := s.Run(ctx)
	require.NoError(t, err)
	// the probe in flight when cancel fired still records its outcome
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Lost)
	assert.Equal(t, []time.Duration{time.Second}, h.transport.timeouts)
}

type cancellingTransport struct {
	*fakeTransport
	cancel context.CancelFunc
}

func (c *cancellingTransport) Receive(id, seq uint16, timeout time.Duration) (types.EchoReply, error) {
	c.cancel()
	return c.fakeTransport.Receive(id, seq, timeout)
}

func TestRun_ReceiveErrorAbortsWithPartialStats(t *testing.T) {
	h := newHarness()
	h.transport.recvErr = network.ErrClosed

	s, err := New(baseConfig(), h.transport, h.collector, h.options())
	require.NoError(t, err)

	summary, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrClosed))
	assert.Equal(t, 0, summary.Sent)
}

func TestRun_CustomInterval(t *testing.T) {
	h := newHarness()
	cfg := baseConfig()
	cfg.Count = 2
	cfg.Interval = 200 * time.Millisecond

	s, err := New(cfg, h.transport, h.collector, h.options())
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, h.sleeps)
}

func TestNew_RejectsSmallPayload(t *testing.T) {
	h := newHarness()
	cfg := baseConfig()
	cfg.PayloadSize = 7

	_, err := New(cfg, h.transport, h.collector, h.options())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload size")
	assert.Empty(t, h.transport.sent)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ipv6 target", func(c *Config) { c.Target = net.ParseIP("::1") }, "not an IPv4"},
		{"zero count", func(c *Config) { c.Count = 0 }, "count"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }, "interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := baseConfig()
	cfg.Infinite = true
	cfg.Count = 0
	assert.NoError(t, cfg.Validate(), "count is ignored in infinite mode")
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
