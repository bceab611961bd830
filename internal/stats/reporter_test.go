package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icmp-ping/pkg/types"
)

func TestReporter_FormatReport_WithReplies(t *testing.T) {
	c := NewCollector()
	for _, ms := range []int{1, 2, 3, 4} {
		c.Record(success(time.Duration(ms)*time.Millisecond, 64))
	}
	r := NewReporter(c, "127.0.0.1", 0, "")

	report := r.FormatReport()
	assert.Contains(t, report, "Ping statistics for 127.0.0.1:")
	assert.Contains(t, report, "Sent = 4, Received = 4, Lost = 0 (0.0% loss)")
	assert.Contains(t, report, "Minimum = 1ms, Maximum = 4ms, Average = 2ms")
}

func TestReporter_FormatReport_CountsOnly(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 3; i++ {
		c.Record(types.ProbeOutcome{Status: types.OutcomeTimeout})
	}
	r := NewReporter(c, "192.0.2.1", 0, "")

	report := r.FormatReport()
	assert.Contains(t, report, "Sent = 3, Received = 0, Lost = 3 (100.0% loss)")
	assert.NotContains(t, report, "Minimum")
}

func TestReporter_PrintFinalReport(t *testing.T) {
	c := NewCollector()
	c.Record(success(time.Millisecond, 64))
	r := NewReporter(c, "host", 0, "")

	var buf bytes.Buffer
	r.SetOutput(&buf)
	r.PrintFinalReport()

	assert.Contains(t, buf.String(), "Ping statistics for host:")
	assert.False(t, c.EndTime.IsZero())
}

func TestReporter_ExportJSON(t *testing.T) {
	c := NewCollector()
	c.Record(success(5*time.Millisecond, 64))
	c.Record(types.ProbeOutcome{Status: types.OutcomeTimeout})
	c.Finish()

	path := filepath.Join(t.TempDir(), "stats.json")
	r := NewReporter(c, "example.org", 0, path)
	require.NoError(t, r.ExportJSON())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got struct {
		Target     string     `json:"target"`
		Statistics Statistics `json:"statistics"`
		Timeouts   int        `json:"timeouts"`
		DelaysMs   []int64    `json:"delays_ms"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "example.org", got.Target)
	assert.Equal(t, 2, got.Statistics.Sent)
	assert.Equal(t, 1, got.Statistics.Received)
	assert.Equal(t, 50.0, got.Statistics.LossPercent)
	assert.Equal(t, 1, got.Timeouts)
	assert.Equal(t, []int64{5}, got.DelaysMs)
}

func TestReporter_ExportJSON_Disabled(t *testing.T) {
	r := NewReporter(NewCollector(), "x", 0, "")
	assert.NoError(t, r.ExportJSON())
}

type syncBuffer struct {
	mu  chan struct{}
	buf bytes.Buffer
}

func newSyncBuffer() *syncBuffer {
	return &syncBuffer{mu: make(chan struct{}, 1)}
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu <- struct{}{}
	defer func() { <-b.mu }()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu <- struct{}{}
	defer func() { <-b.mu }()
	return b.buf.String()
}

func TestReporter_PeriodicReport(t *testing.T) {
	c := NewCollector()
	c.Record(success(time.Millisecond, 64))
	r := NewReporter(c, "periodic", 1, "")
	out := newSyncBuffer()
	r.SetOutput(out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartPeriodicReport(ctx)

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Ping statistics for periodic:")
	}, 3*time.Second, 50*time.Millisecond)
}
