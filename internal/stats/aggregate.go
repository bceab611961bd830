package stats

// Statistics summarizes a finished (or interrupted) probe session.
// RTT fields are only meaningful when HasRTT is set.
type Statistics struct {
	Sent        int     `json:"sent"`
	Received    int     `json:"received"`
	Lost        int     `json:"lost"`
	LossPercent float64 `json:"loss_percent"`
	HasRTT      bool    `json:"has_rtt"`
	MinMs       int64   `json:"min_ms,omitempty"`
	MaxMs       int64   `json:"max_ms,omitempty"`
	AvgMs       int64   `json:"avg_ms,omitempty"`
}

// Summarize reduces probe counts and per-reply delays (milliseconds) into
// Statistics. With no delays only the counts are filled in.
func Summarize(sent, received int, delays []int64) Statistics {
	s := Statistics{
		Sent:     sent,
		Received: received,
		Lost:     sent - received,
	}
	if sent > 0 {
		s.LossPercent = float64(s.Lost) / float64(sent) * 100
	}

	if len(delays) == 0 {
		return s
	}

	s.HasRTT = true
	s.MinMs, s.MaxMs = delays[0], delays[0]
	var sum int64
	for _, d := range delays {
		if d < s.MinMs {
			s.MinMs = d
		}
		if d > s.MaxMs {
			s.MaxMs = d
		}
		sum += d
	}
	// delays are non-negative, so integer division floors
	s.AvgMs = sum / int64(len(delays))
	return s
}
