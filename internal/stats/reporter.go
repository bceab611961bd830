package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Reporter outputs statistics to console and/or file.
type Reporter struct {
	collector   *Collector
	target      string
	intervalSec int
	exportFile  string
	out         io.Writer
}

// NewReporter creates a new statistics reporter for the named target.
func NewReporter(collector *Collector, target string, intervalSec int, exportFile string) *Reporter {
	return &Reporter{
		collector:   collector,
		target:      target,
		intervalSec: intervalSec,
		exportFile:  exportFile,
		out:         os.Stdout,
	}
}

// SetOutput redirects console reports.
func (r *Reporter) SetOutput(w io.Writer) {
	r.out = w
}

// StartPeriodicReport prints the running statistics every intervalSec
// seconds until ctx is done. It is a no-op when the interval is not positive.
func (r *Reporter) StartPeriodicReport(ctx context.Context) {
	if r.intervalSec <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Duration(r.intervalSec) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(r.out, r.FormatReport())
			}
		}
	}()
}

// PrintFinalReport prints the final statistics summary.
func (r *Reporter) PrintFinalReport() {
	r.collector.Finish()
	fmt.Fprint(r.out, r.FormatReport())
}

// FormatReport renders the statistics block. RTT lines are omitted when no
// reply was received.
func (r *Reporter) FormatReport() string {
	s := r.collector.Summary()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\nPing statistics for %s:\n", r.target))
	sb.WriteString(fmt.Sprintf("    Packets: Sent = %d, Received = %d, Lost = %d (%.1f%% loss),\n",
		s.Sent, s.Received, s.Lost, s.LossPercent))
	if s.HasRTT {
		sb.WriteString("Approximate round trip times in milli-seconds:\n")
		sb.WriteString(fmt.Sprintf("    Minimum = %dms, Maximum = %dms, Average = %dms\n",
			s.MinMs, s.MaxMs, s.AvgMs))
	}
	return sb.String()
}

// ExportJSON exports statistics to a JSON file.
func (r *Reporter) ExportJSON() error {
	if r.exportFile == "" {
		return nil
	}

	snap := r.collector.Snapshot()
	export := map[string]interface{}{
		"target":       r.target,
		"start_time":   snap.StartTime.Format(time.RFC3339),
		"end_time":     snap.EndTime.Format(time.RFC3339),
		"duration_sec": snap.Duration().Seconds(),
		"statistics":   snap.Summary(),
		"timeouts":     snap.Timeouts,
		"send_errors":  snap.Errors,
		"delays_ms":    snap.Delays,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats JSON: %w", err)
	}

	if err := os.WriteFile(r.exportFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats file %s: %w", r.exportFile, err)
	}

	log.WithField("file", r.exportFile).Info("Statistics exported to JSON")
	return nil
}
