// Package config loads mudra settings from flags, environment, an optional
// .env file and an optional TOML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Modes selected by the first positional argument.
const (
	ModeRun    = "run"
	ModeRecord = "record"
)

// EnvPrefix prefixes every environment override, e.g. MUDRA_SERIAL_PORT.
const EnvPrefix = "MUDRA"

// Config holds application configuration.
type Config struct {
	Mode string `mapstructure:"-" validate:"oneof=run record"`

	Serial     SerialConfig     `mapstructure:"serial"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Debounce   DebounceConfig   `mapstructure:"debounce"`
	Camera     CameraConfig     `mapstructure:"camera"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Store      StoreConfig      `mapstructure:"store"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	UI         UIConfig         `mapstructure:"ui"`
	Log        LogConfig        `mapstructure:"log"`
	Record     RecordConfig     `mapstructure:"record"`
}

// SerialConfig describes the outbound link.
type SerialConfig struct {
	Port         string        `mapstructure:"port" validate:"required"`
	Baud         uint          `mapstructure:"baud" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
	Required     bool          `mapstructure:"required"`
}

// ClassifierConfig selects the gesture classification strategy.
type ClassifierConfig struct {
	Strategy    string   `mapstructure:"strategy" validate:"oneof=learned rules"`
	ModelPath   string   `mapstructure:"model_path" validate:"required_if=Strategy learned"`
	ONNXLibrary string   `mapstructure:"onnx_library"`
	Labels      []string `mapstructure:"labels" validate:"min=1,dive,required"`
}

// DebounceConfig sets the shared command cooldown.
type DebounceConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown" validate:"gt=0"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device int  `mapstructure:"device" validate:"gte=0"`
	FPS    int  `mapstructure:"fps" validate:"gt=0,lte=120"`
	Flip   bool `mapstructure:"flip"`
}

// DetectorConfig configures the landmark service.
type DetectorConfig struct {
	Script          string        `mapstructure:"script"`
	MinConfidence   float64       `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	MinTracking     float64       `mapstructure:"min_tracking" validate:"gte=0,lte=1"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout" validate:"gt=0"`
}

// StoreConfig locates the dispatch history.
type StoreConfig struct {
	// Path of the sqlite database. Empty disables dispatch history.
	Path string `mapstructure:"path"`
}

// MQTTConfig configures dispatch telemetry.
type MQTTConfig struct {
	// Broker URL, e.g. tcp://localhost:1883. Empty disables telemetry.
	Broker   string `mapstructure:"broker" validate:"omitempty,url"`
	Topic    string `mapstructure:"topic" validate:"required_with=Broker"`
	ClientID string `mapstructure:"client_id"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	// Addr to listen on, e.g. :8080. Empty disables the status server.
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// UIConfig toggles the desktop tray.
type UIConfig struct {
	Tray bool `mapstructure:"tray"`
}

// LogConfig sets the log level and optional rotated log file.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File  string `mapstructure:"file"`
}

// RecordConfig applies to record mode only.
type RecordConfig struct {
	Label string `mapstructure:"label"`
	Out   string `mapstructure:"out"`
}

// DefaultLabels is the label order of the bundled learned models.
var DefaultLabels = []string{
	"Open Hand", "Fist", "Peace Sign", "One Finger", "Thumbs Up", "Three Fingers", "Hip Hop",
}

// flagKeys binds command-line flags to configuration keys.
var flagKeys = map[string]string{
	"port":         "serial.port",
	"baud":         "serial.baud",
	"required":     "serial.required",
	"strategy":     "classifier.strategy",
	"model":        "classifier.model_path",
	"onnx-library": "classifier.onnx_library",
	"cooldown":     "debounce.cooldown",
	"camera":       "camera.device",
	"fps":          "camera.fps",
	"flip":         "camera.flip",
	"detector":     "detector.script",
	"db":           "store.path",
	"mqtt":         "mqtt.broker",
	"http":         "http.addr",
	"tray":         "ui.tray",
	"log-level":    "log.level",
	"log-file":     "log.file",
	"label":        "record.label",
	"out":          "record.out",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.write_timeout", time.Second)
	v.SetDefault("serial.settle_delay", 2*time.Second)
	v.SetDefault("serial.required", false)
	v.SetDefault("classifier.strategy", "learned")
	v.SetDefault("classifier.model_path", "model.onnx")
	v.SetDefault("classifier.onnx_library", "")
	v.SetDefault("classifier.labels", DefaultLabels)
	v.SetDefault("debounce.cooldown", 2*time.Second)
	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.fps", 15)
	v.SetDefault("camera.flip", true)
	v.SetDefault("detector.script", "")
	v.SetDefault("detector.min_confidence", 0.7)
	v.SetDefault("detector.min_tracking", 0.5)
	v.SetDefault("detector.response_timeout", 2*time.Second)
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "mudra/commands")
	v.SetDefault("mqtt.client_id", "mudra")
	v.SetDefault("http.addr", "")
	v.SetDefault("ui.tray", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("record.label", "")
	v.SetDefault("record.out", "dataset.csv")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mudra", "mudra.db")
}

// newFlagSet declares the command-line surface. Defaults live in viper so
// flags only win when set explicitly.
func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("mudra", pflag.ContinueOnError)
	flags.String("config", "", "path to a TOML config file")
	flags.String("port", "", "serial device of the receiver")
	flags.Uint("baud", 0, "serial baud rate")
	flags.Bool("required", false, "exit if the serial link cannot be opened")
	flags.String("strategy", "", "classifier strategy: learned or rules")
	flags.String("model", "", "model artifact (.onnx, .json or .csv)")
	flags.String("onnx-library", "", "path to the onnxruntime shared library")
	flags.Duration("cooldown", 0, "minimum time between dispatched commands")
	flags.Int("camera", 0, "camera device index")
	flags.Int("fps", 0, "camera frame rate")
	flags.Bool("flip", true, "mirror camera frames")
	flags.String("detector", "", "hand landmark detector script")
	flags.String("db", "", "sqlite dispatch history path")
	flags.String("mqtt", "", "MQTT broker URL for dispatch telemetry")
	flags.String("http", "", "listen address of the status server")
	flags.Bool("tray", false, "show the system tray menu")
	flags.String("log-level", "", "log level")
	flags.String("log-file", "", "rotated log file")
	flags.String("label", "", "record mode: label of the captured samples")
	flags.String("out", "", "record mode: CSV file to append to")
	return flags
}

// Load parses args (without the program name) and returns the validated
// configuration. The first positional argument, if any, selects the mode.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	mode := ModeRun
	if rest := flags.Args(); len(rest) > 0 {
		mode = rest[0]
		if len(rest) > 1 {
			return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest[1:], " "))
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	cfgPath, _ := flags.GetString("config")
	if cfgPath == "" {
		cfgPath = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("mudra")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "mudra"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Mode = mode
	c.Store.Path = expandHome(c.Store.Path)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = validator.New()

// Validate checks field constraints and mode-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Mode == ModeRecord {
		if c.Record.Label == "" {
			return errors.New("invalid config: record mode needs --label")
		}
		if c.Record.Out == "" {
			return errors.New("invalid config: record mode needs --out")
		}
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
