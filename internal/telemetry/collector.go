package telemetry

import "github.com/tilewall/tilewall/internal/pane"

// FromPanes adapts a pane set into a Collector, reading each pane's
// current latency-controller and restart-count state.
func FromPanes(panes []*pane.Pane) Collector {
	return func() []Sample {
		samples := make([]Sample, len(panes))
		for i, p := range panes {
			w, h := p.GetResolution()
			samples[i] = Sample{
				Pane:       p.Index,
				Bitrate:    p.GetBitrate(),
				LagSeconds: p.LagSeconds(),
				Speed:      p.GetSpeed(),
				Width:      w,
				Height:     h,
				Restarts:   p.Restarts(),
			}
		}
		return samples
	}
}
