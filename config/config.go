// Package config loads settings from flags, GRADER_* environment variables
// and an optional .env.<env> file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/notebookgrader/grader-client/polling"
	"github.com/notebookgrader/grader-client/validation"
)

const EnvPrefix = "GRADER"

// Keys
const (
	KeyServerURL        = "server-url"
	KeyToken            = "token"
	KeyTimeout          = "timeout"
	KeyDebug            = "debug"
	KeyEnv              = "env"
	KeyPollInitialDelay = "poll-initial-delay"
	KeyPollMultiplier   = "poll-multiplier"
	KeyPollMaxDelay     = "poll-max-delay"
	KeyPollMaxChecks    = "poll-max-checks"
	KeyRollbarToken     = "rollbar-token"
	KeySandboxAddr      = "sandbox-addr"
	KeySandboxSecret    = "sandbox-secret"
	KeySandboxDelay     = "sandbox-delay"
)

// Config holds the client and sandbox settings
type Config struct {
	ServerURL string        `mapstructure:"server-url" validate:"required,url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Debug     bool          `mapstructure:"debug"`
	Env       string        `mapstructure:"env" validate:"oneof=dev test qa prod"`

	PollInitialDelay time.Duration `mapstructure:"poll-initial-delay" validate:"gt=0"`
	PollMultiplier   float64       `mapstructure:"poll-multiplier" validate:"gte=1"`
	PollMaxDelay     time.Duration `mapstructure:"poll-max-delay" validate:"gtefield=PollInitialDelay"`
	PollMaxChecks    int           `mapstructure:"poll-max-checks" validate:"gte=0"`

	RollbarToken string `mapstructure:"rollbar-token"`

	SandboxAddr   string        `mapstructure:"sandbox-addr" validate:"required"`
	SandboxSecret string        `mapstructure:"sandbox-secret" validate:"required"`
	SandboxDelay  time.Duration `mapstructure:"sandbox-delay" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault(KeyServerURL, "http://localhost:8000")
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyEnv, "dev")
	v.SetDefault(KeyPollInitialDelay, polling.DefaultInitialDelay)
	v.SetDefault(KeyPollMultiplier, polling.DefaultMultiplier)
	v.SetDefault(KeyPollMaxDelay, polling.DefaultMaxDelay)
	v.SetDefault(KeyPollMaxChecks, 0)
	v.SetDefault(KeyRollbarToken, "")
	v.SetDefault(KeySandboxAddr, ":8000")
	v.SetDefault(KeySandboxSecret, "sandbox-secret-change-me")
	v.SetDefault(KeySandboxDelay, 15*time.Second)
}

// RegisterCommonFlags adds the flags read by both the client and the sandbox
func RegisterCommonFlags(fs *pflag.FlagSet) {
	fs.String(KeyToken, "", "session token")
	fs.Bool(KeyDebug, false, "enable debug logging")
	fs.String(KeyEnv, "dev", "environment: dev, test, qa or prod")
}

// RegisterFlags adds the client flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	RegisterCommonFlags(fs)
	fs.String(KeyServerURL, "http://localhost:8000", "grading server URL")
	fs.Duration(KeyTimeout, 30*time.Second, "request timeout")
	fs.Duration(KeyPollInitialDelay, polling.DefaultInitialDelay, "delay before the first status check")
	fs.Float64(KeyPollMultiplier, polling.DefaultMultiplier, "growth factor between status checks")
	fs.Duration(KeyPollMaxDelay, polling.DefaultMaxDelay, "longest delay between status checks")
	fs.Int(KeyPollMaxChecks, 0, "give up after this many status checks (0 = never)")
	fs.String(KeyRollbarToken, "", "rollbar access token")
}

// RegisterSandboxFlags adds the sandbox server flags to fs
func RegisterSandboxFlags(fs *pflag.FlagSet) {
	fs.String(KeySandboxAddr, ":8000", "sandbox listen address")
	fs.String(KeySandboxSecret, "sandbox-secret-change-me", "secret signing object storage URLs")
	fs.Duration(KeySandboxDelay, 15*time.Second, "how long grading and feedback take")
}

// Load reads the configuration. dir is where .env.<env> files live; the
// working directory is used when it is empty. flags may be nil.
func Load(flags *pflag.FlagSet, dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errors.Wrap(err, "binding flags")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	env := strings.ToLower(v.GetString(KeyEnv))
	if err := loadDotEnv(dir, env); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	cfg.Env = strings.ToLower(cfg.Env)

	if err := validation.Struct(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads .env.<env> if it exists. Variables already set win.
func loadDotEnv(dir, env string) error {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, "getting working directory")
		}
		dir = wd
	}
	path := filepath.Join(dir, ".env."+env)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "checking %s", path)
	}
	return errors.Wrapf(godotenv.Load(path), "loading %s", path)
}

// Schedule returns the polling schedule
func (c *Config) Schedule() polling.Schedule {
	return polling.Schedule{
		InitialDelay: c.PollInitialDelay,
		Multiplier:   c.PollMultiplier,
		MaxDelay:     c.PollMaxDelay,
	}
}

// Polling returns the poller configuration
func (c *Config) Polling() polling.Config {
	pc := polling.DefaultConfig()
	pc.Schedule = c.Schedule()
	pc.MaxChecks = c.PollMaxChecks
	return pc
}
