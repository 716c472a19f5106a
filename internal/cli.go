package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// 抽出するフレーム数のデフォルト
const DefaultQuota = 5

const (
	StreamPolicyFirst   = "first"
	StreamPolicyLargest = "largest"
)

var ErrMissingInput = errors.New("you need to specify a media file")

// Config は1回の抽出の実行パラメータ
// 環境変数 → コマンドラインフラグの順に上書きされる
type Config struct {
	InputPath    string
	Quota        int    `env:"EXTRACT_QUOTA"         envDefault:"5"`
	OutputDir    string `env:"EXTRACT_OUTPUT_DIR"    envDefault:"."`
	GrayPattern  string `env:"EXTRACT_GRAY_PATTERN"  envDefault:"frame-%d.pgm"`
	ColorPattern string `env:"EXTRACT_COLOR_PATTERN" envDefault:"frame-%d.ppm"`
	WriteGray    bool   `env:"EXTRACT_GRAY"          envDefault:"true"`
	WriteColor   bool   `env:"EXTRACT_COLOR"         envDefault:"true"`
	StreamPolicy string `env:"EXTRACT_STREAM_POLICY" envDefault:"first"`
	LogLevel     string `env:"EXTRACT_LOG_LEVEL"     envDefault:"info"`
	LogFile      string `env:"EXTRACT_LOG_FILE"`
	MetricsFile  string `env:"EXTRACT_METRICS_FILE"`
	DebugMode    bool
}

// Validate checks the values that flags and environment cannot constrain.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return ErrMissingInput
	}
	if c.Quota < 1 {
		return fmt.Errorf("quota must be at least 1, got %d", c.Quota)
	}
	switch c.StreamPolicy {
	case StreamPolicyFirst, StreamPolicyLargest:
	default:
		return fmt.Errorf("unknown stream policy %q (supported: %s, %s)",
			c.StreamPolicy, StreamPolicyFirst, StreamPolicyLargest)
	}
	if !c.WriteGray && !c.WriteColor {
		return fmt.Errorf("at least one of --gray and --color must be enabled")
	}
	return nil
}

// NewFlagSet binds the command line flags to cfg, using the current values
// of cfg as defaults.
func NewFlagSet(name string, cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.IntVarP(&cfg.Quota, "quota", "n", cfg.Quota, "Number of video frames to extract")
	fs.StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Directory to write frame images into")
	fs.BoolVar(&cfg.WriteGray, "gray", cfg.WriteGray, "Write grayscale frames (PGM)")
	fs.BoolVar(&cfg.WriteColor, "color", cfg.WriteColor, "Write color frames (PPM)")
	fs.StringVar(&cfg.StreamPolicy, "stream-policy", cfg.StreamPolicy, "Video stream selection (first, largest)")
	fs.BoolVarP(&cfg.DebugMode, "debug", "d", cfg.DebugMode, "Enable debug logging")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write JSON logs to this file (rotated)")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics to this file after the run")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "extract - Decode the first video frames of a media file into PGM/PPM images\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [flags] <input-media-path>\n\n", name)
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s input.webm\n", name)
		fmt.Fprintf(os.Stderr, "  %s -n 10 -o frames input.ivf\n", name)
		fmt.Fprintf(os.Stderr, "  %s --color=false input.mp4\n\n", name)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	return fs
}

// LoadConfig は環境変数とコマンドライン引数から設定を作る
func LoadConfig(name string, args []string) (*Config, *pflag.FlagSet, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, nil, fmt.Errorf("parse environment: %w", err)
	}

	fs := NewFlagSet(name, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if fs.NArg() > 0 {
		cfg.InputPath = fs.Arg(0)
	}
	if cfg.DebugMode {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fs, err
	}
	return cfg, fs, nil
}
