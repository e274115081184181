// Package config holds the process-wide configuration for the tilewall
// player and its optional control-plane tunnel, plus the JSON
// file-override loader used by --config: flags set the defaults, then an
// optional JSON file overrides whichever fields it sets.
package config

import (
	"encoding/json"
	"os"

	"github.com/tilewall/tilewall/internal/decoder"
)

// Exit codes for cmd/tilewall, per the CLI contract.
const (
	ExitOK                   = 0
	ExitEmptyVideoURL        = -1
	ExitPaneConstructionFail = -2
)

// Config is the full CLI surface: the video-wall pipeline flags plus the
// control-plane tunnel flags.
type Config struct {
	LogPath      string `json:"log_path"`
	LogLevel     string `json:"log_level"`
	Ways         int    `json:"ways"`
	GPUWays      int    `json:"gpu_ways"`
	VideoURL     string `json:"video_url"`
	Profile      string `json:"profile"`
	VO           string `json:"vo"`
	Hwdec        string `json:"hwdec"`
	GPUAPI       string `json:"gpu_api"`
	GPUContext   string `json:"gpu_context"`
	MpvLogLevel  string `json:"mpv_log_level"`
	WindowLeftPos int   `json:"window_left_pos"`
	WindowTopPos  int   `json:"window_top_pos"`
	WindowWidth   int   `json:"window_width"`
	WindowHeight  int   `json:"window_height"`

	ControlListen     string `json:"control_listen"`
	ControlKey        string `json:"control_key"`
	ControlCrypt      string `json:"control_crypt"`
	ControlMode       string `json:"control_mode"`
	ControlSNMPLog    string `json:"control_snmp_log"`
	ControlSNMPPeriod int    `json:"control_snmp_period"`
}

// Default returns the baseline flag values every pane and the control
// tunnel start from before --config or explicit flags override them.
func Default() Config {
	return Config{
		LogLevel:          "info",
		Ways:              1,
		Profile:           "low-latency",
		Hwdec:             "auto",
		MpvLogLevel:       "v",
		ControlCrypt:      "aes",
		ControlMode:       "fast",
		ControlSNMPPeriod: 60,
	}
}

// LoadJSON decodes path into cfg, overriding whatever fields are present
// in the file. Fields absent from the file keep their current value.
func LoadJSON(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(cfg)
}

// MpvLogLevelToDecoder maps the CLI's --mpv_log_level string onto the
// decoder package's LogLevel scale.
func MpvLogLevelToDecoder(s string) decoder.LogLevel {
	switch s {
	case "trace":
		return decoder.LevelTrace
	case "debug":
		return decoder.LevelDebug
	case "v":
		return decoder.LevelV
	case "info":
		return decoder.LevelInfo
	case "warn":
		return decoder.LevelWarn
	case "error":
		return decoder.LevelError
	case "fatal":
		return decoder.LevelFatal
	case "no":
		return decoder.LevelNone
	default:
		return decoder.LevelV
	}
}
