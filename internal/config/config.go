// Package config loads and validates the typed configuration consumed by
// the scanning pipeline. Values come from an optional sheetscan.yaml plus
// SHEETSCAN_* environment overrides.
package config

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Intake  IntakeConfig  `yaml:"intake" mapstructure:"intake"`
	Regions RegionConfig  `yaml:"regions" mapstructure:"regions"`
	Marks   MarksConfig   `yaml:"marks" mapstructure:"marks"`
	OCR     OCRConfig     `yaml:"ocr" mapstructure:"ocr"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Exam    ExamConfig    `yaml:"exam" mapstructure:"exam"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Capture CaptureConfig `yaml:"capture" mapstructure:"capture"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IntakeConfig tunes the brightness-edge sheet detector and state machine.
type IntakeConfig struct {
	// EdgeDelta is how far current brightness must exceed the rolling
	// baseline before an insertion edge is declared (0-255 scale).
	EdgeDelta float64 `yaml:"edge_delta" mapstructure:"edge_delta"`

	// Cooldown is how long detection stays disabled after a capture
	// before the baseline is re-sampled.
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown"`

	// PollInterval is the frame polling cadence.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// FractionalRect is a resolution-independent rectangle expressed as
// fractions of full image width and height.
type FractionalRect struct {
	X float64 `yaml:"x" mapstructure:"x"`
	Y float64 `yaml:"y" mapstructure:"y"`
	W float64 `yaml:"w" mapstructure:"w"`
	H float64 `yaml:"h" mapstructure:"h"`
}

// RegionConfig fixes where the identity field and answer grid sit on the
// sheet, as fractions of the captured frame.
type RegionConfig struct {
	Identity FractionalRect `yaml:"identity" mapstructure:"identity"`
	Grid     FractionalRect `yaml:"grid" mapstructure:"grid"`
}

// MarksConfig tunes bubble extraction. Thresholds are deliberately
// configuration, not constants: they are tuned per physical setup.
type MarksConfig struct {
	BinarizeThreshold    uint8   `yaml:"binarize_threshold" mapstructure:"binarize_threshold"`
	MinArea              int     `yaml:"min_area" mapstructure:"min_area"`
	MaxArea              int     `yaml:"max_area" mapstructure:"max_area"`
	CircularityThreshold float64 `yaml:"circularity_threshold" mapstructure:"circularity_threshold"`
	FillThreshold        float64 `yaml:"fill_threshold" mapstructure:"fill_threshold"`
	RowTolerance         float64 `yaml:"row_tolerance" mapstructure:"row_tolerance"`
	DebugOverlay         bool    `yaml:"debug_overlay" mapstructure:"debug_overlay"`
}

// OCRConfig configures the identity-field text recognizer.
type OCRConfig struct {
	Language string `yaml:"language" mapstructure:"language"`
	MinWidth int    `yaml:"min_width" mapstructure:"min_width"` // upscale narrower crops
}

// MatchConfig tunes roster resolution.
type MatchConfig struct {
	Threshold   float64 `yaml:"threshold" mapstructure:"threshold"`
	Suggestions int     `yaml:"suggestions" mapstructure:"suggestions"`
	MaxNameLen  int     `yaml:"max_name_len" mapstructure:"max_name_len"`
}

// ExamConfig describes the sheet layout and the answer key.
type ExamConfig struct {
	Questions int            `yaml:"questions" mapstructure:"questions"`
	Choices   int            `yaml:"choices" mapstructure:"choices"`
	AnswerKey map[int]string `yaml:"answer_key" mapstructure:"answer_key"`
}

// CaptureConfig controls where capture artifacts land on disk.
type CaptureConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads sheetscan.yaml (optional) and environment overrides into a
// Config with defaults applied.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("sheetscan")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SHEETSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sheetscan.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("intake.edge_delta", 30.0)
	v.SetDefault("intake.cooldown", "2s")
	v.SetDefault("intake.poll_interval", "100ms")
	v.SetDefault("regions.identity.x", 0.075)
	v.SetDefault("regions.identity.y", 0.12)
	v.SetDefault("regions.identity.w", 0.85)
	v.SetDefault("regions.identity.h", 0.08)
	v.SetDefault("regions.grid.x", 0.10)
	v.SetDefault("regions.grid.y", 0.25)
	v.SetDefault("regions.grid.w", 0.80)
	v.SetDefault("regions.grid.h", 0.65)
	v.SetDefault("marks.binarize_threshold", 128)
	v.SetDefault("marks.min_area", 80)
	v.SetDefault("marks.max_area", 5000)
	v.SetDefault("marks.circularity_threshold", 0.60)
	v.SetDefault("marks.fill_threshold", 0.30)
	v.SetDefault("marks.row_tolerance", 0.5)
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.min_width", 400)
	v.SetDefault("match.threshold", 0.70)
	v.SetDefault("match.suggestions", 3)
	v.SetDefault("match.max_name_len", 64)
	v.SetDefault("exam.questions", 10)
	v.SetDefault("exam.choices", 4)
	v.SetDefault("capture.dir", "scans")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	// Weak typing lets the numeric answer-key questions decode from the
	// string keys YAML hands viper.
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects structurally broken configuration. These are the only
// fatal-at-startup conditions in the system.
func (c *Config) Validate() error {
	if c.Exam.Questions <= 0 {
		return eris.Errorf("config: exam.questions must be positive, got %d", c.Exam.Questions)
	}
	if c.Exam.Choices < 2 || c.Exam.Choices > 26 {
		return eris.Errorf("config: exam.choices must be in [2,26], got %d", c.Exam.Choices)
	}
	for q, a := range c.Exam.AnswerKey {
		if q < 1 || q > c.Exam.Questions {
			return eris.Errorf("config: answer key question %d outside 1..%d", q, c.Exam.Questions)
		}
		if len(a) != 1 || a[0] < 'A' || a[0] >= byte('A'+c.Exam.Choices) {
			return eris.Errorf("config: answer key for question %d has invalid choice %q", q, a)
		}
	}
	for name, f := range map[string]float64{
		"marks.circularity_threshold": c.Marks.CircularityThreshold,
		"marks.fill_threshold":        c.Marks.FillThreshold,
		"match.threshold":             c.Match.Threshold,
	} {
		if f < 0 || f > 1 {
			return eris.Errorf("config: %s must be in [0,1], got %g", name, f)
		}
	}
	if c.Marks.MinArea < 0 || c.Marks.MaxArea <= c.Marks.MinArea {
		return eris.Errorf("config: marks area bounds invalid (min %d, max %d)", c.Marks.MinArea, c.Marks.MaxArea)
	}
	for name, r := range map[string]FractionalRect{
		"regions.identity": c.Regions.Identity,
		"regions.grid":     c.Regions.Grid,
	} {
		if r.X < 0 || r.Y < 0 || r.W <= 0 || r.H <= 0 || r.X+r.W > 1 || r.Y+r.H > 1 {
			return eris.Errorf("config: %s fractions must fit inside the unit square", name)
		}
	}
	if c.Intake.EdgeDelta <= 0 {
		return eris.Errorf("config: intake.edge_delta must be positive, got %g", c.Intake.EdgeDelta)
	}
	if c.Intake.PollInterval <= 0 || c.Intake.Cooldown < 0 {
		return eris.New("config: intake intervals must be positive")
	}
	if c.Match.Suggestions < 0 {
		return eris.Errorf("config: match.suggestions must be non-negative, got %d", c.Match.Suggestions)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// AnswerKeyBytes converts the configured answer key to choice bytes keyed
// by question index.
func (c *Config) AnswerKeyBytes() map[int]byte {
	key := make(map[int]byte, len(c.Exam.AnswerKey))
	for q, a := range c.Exam.AnswerKey {
		key[q] = a[0]
	}
	return key
}

// InitLogger builds the global zap logger from LogConfig.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
