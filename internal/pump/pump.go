// Package pump implements the per-pane event pump: a polling loop over a
// decoder Handle's WaitEvent that classifies log messages into the host
// log taxonomy, detects the one recoverable codec-change condition, and
// extracts decoded resolution from two known log message shapes.
package pump

import (
	"strconv"
	"strings"
	"time"

	"github.com/tilewall/tilewall/internal/decoder"
)

// pollInterval is the WaitEvent timeout; it also bounds how quickly the
// pump notices its stopping flag.
const pollInterval = 16 * time.Millisecond

// codecChangeNeedle is the literal substring that marks a recoverable
// codec event on the video substream.
const codecChangeNeedle = "data partitioning is not implemented"

const (
	formatPrefix  = "Decoder format: "
	reconfigPrefix = "reconfig to "
)

// Severity is the host log taxonomy the pump maps decoder levels onto.
type Severity int

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityCritical
	SeverityOff
)

func (s Severity) String() string {
	switch s {
	case SeverityTrace:
		return "trace"
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "off"
	}
}

// MapSeverity translates a decoder log level to the host taxonomy.
// V (verbose) is folded into info.
func MapSeverity(level decoder.LogLevel) Severity {
	switch level {
	case decoder.LevelTrace:
		return SeverityTrace
	case decoder.LevelDebug:
		return SeverityDebug
	case decoder.LevelV, decoder.LevelInfo:
		return SeverityInfo
	case decoder.LevelWarn:
		return SeverityWarn
	case decoder.LevelError:
		return SeverityError
	case decoder.LevelFatal:
		return SeverityCritical
	default:
		return SeverityOff
	}
}

// Logger receives one record per classified log message.
type Logger interface {
	Printf(format string, args ...any)
}

// Restarter is the pane's restart hook, invoked when the codec-change
// condition fires. The pump never touches the pane directly beyond this
// and the resolution callback: it borrows, it does not own.
type Restarter interface {
	Restart()
}

// ResolutionSink receives the width/height parsed from a format or
// reconfig log line, on first successful parse only.
type ResolutionSink interface {
	SetResolution(width, height int)
}

// Pump polls one decoder Handle for log events on behalf of one pane.
type Pump struct {
	Handle       decoder.Handle
	VideoPrefix  string
	Restarter    Restarter
	Resolution   ResolutionSink
	Logger       Logger
	StoppingFunc func() bool

	resolutionSeen bool
}

// Run blocks, polling Handle.WaitEvent every 16ms, until StoppingFunc
// reports true, Handle is nil, or handleLog reports that it fired a
// codec-change restart.
func (p *Pump) Run() {
	for {
		if p.StoppingFunc != nil && p.StoppingFunc() {
			return
		}
		if p.Handle == nil {
			return
		}

		ev := p.Handle.WaitEvent(int(pollInterval / time.Millisecond))
		if ev.Kind != decoder.EventLogMessage {
			continue
		}
		if p.handleLog(ev.Log) {
			return
		}
	}
}

// handleLog classifies one log message, applying the codec-change
// detector and resolution extractor. It reports true when a restart was
// triggered: Run must exit its loop in that case, since the restart has
// already torn down this goroutine's handle and spawned its replacement,
// and this goroutine must detach rather than join itself.
func (p *Pump) handleLog(msg decoder.LogMessage) bool {
	severity := MapSeverity(msg.Level)
	if p.Logger != nil {
		p.Logger.Printf("[%s] [%s] %s", severity, msg.Prefix, msg.Text)
	}

	if p.isCodecChange(msg) {
		if p.Restarter != nil {
			p.Restarter.Restart()
		}
		return true
	}

	if !p.resolutionSeen {
		if w, h, ok := parseResolution(msg.Text); ok {
			p.resolutionSeen = true
			if p.Resolution != nil {
				p.Resolution.SetResolution(w, h)
			}
		}
	}
	return false
}

// isCodecChange implements the codec-change detector: severity WARN or
// worse on the numeric scale (lower value = more severe, so
// level <= LevelWarn), a prefix match on the video substream identifier,
// and the literal data-partitioning substring.
func (p *Pump) isCodecChange(msg decoder.LogMessage) bool {
	if msg.Level > decoder.LevelWarn {
		return false
	}
	if p.VideoPrefix != "" && !strings.HasPrefix(msg.Prefix, p.VideoPrefix) {
		return false
	}
	return strings.Contains(msg.Text, codecChangeNeedle)
}

// parseResolution recognizes the two known log message shapes:
//   "Decoder format: WxH ..."
//   "reconfig to WxH ..."
func parseResolution(text string) (width, height int, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(text, formatPrefix):
		rest = text[len(formatPrefix):]
	case strings.HasPrefix(text, reconfigPrefix):
		rest = text[len(reconfigPrefix):]
	default:
		return 0, 0, false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, 0, false
	}
	dims := strings.SplitN(fields[0], "x", 2)
	if len(dims) != 2 {
		return 0, 0, false
	}
	w, err := strconv.Atoi(dims[0])
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(dims[1])
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}
