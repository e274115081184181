// Package latency implements the adaptive playback-speed controller: a
// sliding bitrate estimator that nudges the decoder's playback speed up
// when a pane's ring is backing up, and derives a minimum-bitrate floor
// from the decoded resolution.
package latency

import (
	"math"
	"time"
)

// bitrateWindow is the sliding window used to estimate throughput.
const bitrateWindow = 2 * time.Second

// PropertyGetter reads decoder properties the controller needs:
// estimated-vf-fps for the baseline speed.
type PropertyGetter interface {
	GetFloatProperty(name string, fallback float64) float64
}

// PropertySetter pushes the chosen speed back to the decoder.
type PropertySetter interface {
	SetSpeed(speed float64) error
	CurrentSpeed() float64
}

// Controller accumulates bytes written to a pane's ring and periodically
// recomputes the estimated bitrate, then decides whether to push a new
// playback speed based on how far behind the ring has fallen.
type Controller struct {
	windowStart    time.Time
	accumulated    int64
	estimatedRate  float64 // bytes/sec
	estimatedSpeed float64 // baseline speed derived from fps
	minBitrate     float64 // bytes/sec floor derived from resolution
	lastLagSeconds float64 // most recent occupancy/estimatedRate sample

	now func() time.Time
}

// New returns a Controller with its window anchored at the current time.
func New() *Controller {
	c := &Controller{now: time.Now}
	c.windowStart = c.now()
	c.estimatedSpeed = 1.0
	return c
}

// OnWrite is invoked once per successful producer write into the pane's
// ring with the number of bytes just written. occupancy is the ring's
// current backlog in bytes; props/setter give access to the decoder.
func (c *Controller) OnWrite(n int, occupancy int, props PropertyGetter, setter PropertySetter) {
	c.accumulated += int64(n)

	elapsed := c.now().Sub(c.windowStart)
	if elapsed < bitrateWindow {
		return
	}

	fps := 25.0
	if props != nil {
		fps = props.GetFloatProperty("estimated-vf-fps", 25.0)
	}
	c.estimatedSpeed = math.Max(1.0, math.Ceil(fps/25.0))

	elapsedMS := float64(elapsed / time.Millisecond)
	if elapsedMS <= 0 {
		elapsedMS = 1
	}
	c.estimatedRate = math.Round(float64(c.accumulated) * 1000 / elapsedMS / c.estimatedSpeed)

	c.accumulated = 0
	c.windowStart = c.now()

	if c.estimatedRate < c.minBitrate {
		return
	}

	lagSeconds := 0.0
	if c.estimatedRate > 0 {
		lagSeconds = float64(occupancy) / c.estimatedRate
	}
	c.lastLagSeconds = lagSeconds
	target := c.targetSpeed(lagSeconds)

	if setter == nil {
		return
	}
	current := setter.CurrentSpeed()
	if target != current && target != c.estimatedSpeed {
		setter.SetSpeed(target)
	}
}

// targetSpeed applies the lag-seconds -> speed table.
func (c *Controller) targetSpeed(lagSeconds float64) float64 {
	lag := time.Duration(lagSeconds * float64(time.Second))
	switch {
	case lag < 6*time.Second:
		return c.estimatedSpeed
	case lag < 8*time.Second:
		return 1.4
	case lag < 10*time.Second:
		return 1.6
	case lag < 12*time.Second:
		return 1.8
	default:
		return 2.0
	}
}

// EstimatedBitrate returns the most recently computed bitrate in bytes/sec.
func (c *Controller) EstimatedBitrate() float64 {
	return c.estimatedRate
}

// LagSeconds returns the most recently computed ring-backlog lag, in
// seconds of playback at the estimated bitrate.
func (c *Controller) LagSeconds() float64 {
	return c.lastLagSeconds
}

// SetMinBitrateForResolution derives and stores the minimum-bitrate floor
// from a decoded frame's width and height, per the resolution ladder.
func (c *Controller) SetMinBitrateForResolution(width, height int) {
	area := width * height
	switch {
	case area >= 3840*2160:
		c.minBitrate = 1600 * 1024 / 4
	case area >= 2560*1440:
		c.minBitrate = 800 * 1024 / 4
	case area >= 1920*1080:
		c.minBitrate = 400 * 1024 / 4
	case area >= 1280*720:
		c.minBitrate = 200 * 1024 / 4
	default:
		c.minBitrate = 100 * 1024 / 4
	}
}

// MinBitrate returns the currently active minimum-bitrate floor.
func (c *Controller) MinBitrate() float64 {
	return c.minBitrate
}
