package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Notes      NotesConfig      `mapstructure:"notes"`
	Media      MediaConfig      `mapstructure:"media"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Summarize  SummarizeConfig  `mapstructure:"summarize"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Guest      GuestConfig      `mapstructure:"guest"`
	Events     EventsConfig     `mapstructure:"events"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`

	StreamPingInterval time.Duration `mapstructure:"stream_ping_interval"`
	StreamMaxLifetime  time.Duration `mapstructure:"stream_max_lifetime"`
}

// NotesConfig drives the session state machine, the job runner and the
// retention sweeper.
type NotesConfig struct {
	WorkDir                string        `mapstructure:"work_dir"`
	VaultFolder            string        `mapstructure:"vault_folder"`
	IncludeTranscript      bool          `mapstructure:"include_transcript"`
	MaxChunkBytes          int64         `mapstructure:"max_chunk_bytes"`
	MaxChatTranscriptBytes int64         `mapstructure:"max_chat_transcript_bytes"`
	MaxJobErrorChars       int           `mapstructure:"max_job_error_chars"`
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	PollInitialDelay       time.Duration `mapstructure:"poll_initial_delay"`
	RetentionDays          int           `mapstructure:"retention_days"`
	RetentionInterval      time.Duration `mapstructure:"retention_interval"`
	RetentionInitialDelay  time.Duration `mapstructure:"retention_initial_delay"`
	RetentionBatch         int           `mapstructure:"retention_batch"`
}

type MediaConfig struct {
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	StderrTail int    `mapstructure:"stderr_tail"`
}

type StorageConfig struct {
	LocalRoot string   `mapstructure:"local_root"`
	KeyPrefix string   `mapstructure:"key_prefix"`
	S3        S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
}

// Enabled reports whether the remote object backend is fully configured.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != "" &&
		strings.TrimSpace(c.Region) != "" &&
		strings.TrimSpace(c.AccessKeyID) != "" &&
		strings.TrimSpace(c.SecretAccessKey) != ""
}

type TranscribeConfig struct {
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	Language       string        `mapstructure:"language"`
	ResponseFormat string        `mapstructure:"response_format"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type SummarizeConfig struct {
	Provider           string        `mapstructure:"provider"`
	Model              string        `mapstructure:"model"`
	MaxTranscriptChars int           `mapstructure:"max_transcript_chars"`
	MaxTokens          int           `mapstructure:"max_tokens"`
	Temperature        float64       `mapstructure:"temperature"`
	Timeout            time.Duration `mapstructure:"timeout"`
	PromptFile         string        `mapstructure:"prompt_file"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// GuestConfig holds the HMAC secrets used to verify guest invite tokens.
// A per-kind secret falls back to Secret when empty.
type GuestConfig struct {
	Secret      string `mapstructure:"secret"`
	VideoSecret string `mapstructure:"video_secret"`
	VoiceSecret string `mapstructure:"voice_secret"`
	ChatSecret  string `mapstructure:"chat_secret"`
}

type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type CacheConfig struct {
	MembershipTTL time.Duration `mapstructure:"membership_ttl"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	if err := loadDotEnv(logCtx); err != nil {
		return Config{}, errs.Wrap(err, "load .env")
	}

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("PDFREALM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, errs.Wrap(err, "bind legacy env")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (configFile != "" && errors.Is(err, os.ErrNotExist)) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env", slog.String("path", configFile))
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("s3_enabled", cfg.Storage.S3.Enabled()),
		slog.String("transcribe_provider", cfg.Transcribe.Provider),
		slog.String("summarize_provider", cfg.Summarize.Provider),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.Notes.WorkDir) == "" {
		return errors.New("notes.work_dir is required")
	}
	if c.Notes.RetentionDays < 0 {
		return errors.New("notes.retention_days must not be negative")
	}
	if c.Notes.MaxChunkBytes <= 0 {
		return errors.New("notes.max_chunk_bytes must be positive")
	}
	return nil
}

// loadDotEnv reads ./.env into the process environment outside production.
// Existing variables win.
func loadDotEnv(ctx context.Context) error {
	if strings.EqualFold(os.Getenv("PDFREALM_APP_ENV"), "production") {
		return nil
	}
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(".env"); err != nil {
		return err
	}
	logging.Info(ctx, "loaded .env file")
	return nil
}

// bindLegacyEnv keeps the variable names used by existing deployments working.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"openai.api_key":                {"PDFREALM_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"anthropic.api_key":             {"PDFREALM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"summarize.provider":            {"PDFREALM_SUMMARIZE_PROVIDER", "LLM_PROVIDER"},
		"notes.retention_days":          {"PDFREALM_NOTES_RETENTION_DAYS", "SECURE_AI_RETENTION_DAYS"},
		"notes.include_transcript":      {"PDFREALM_NOTES_INCLUDE_TRANSCRIPT", "SECURE_AI_INCLUDE_TRANSCRIPT"},
		"storage.s3.bucket":             {"PDFREALM_STORAGE_S3_BUCKET", "S3_BUCKET"},
		"storage.s3.region":             {"PDFREALM_STORAGE_S3_REGION", "AWS_REGION"},
		"storage.s3.access_key_id":      {"PDFREALM_STORAGE_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"},
		"storage.s3.secret_access_key":  {"PDFREALM_STORAGE_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"},
		"guest.secret":                  {"PDFREALM_GUEST_SECRET", "JWT_SECRET"},
		"guest.video_secret":            {"PDFREALM_GUEST_VIDEO_SECRET", "VIDEO_GUEST_SECRET"},
		"guest.voice_secret":            {"PDFREALM_GUEST_VOICE_SECRET", "VOICE_GUEST_SECRET"},
		"guest.chat_secret":             {"PDFREALM_GUEST_CHAT_SECRET", "CHAT_GUEST_SECRET"},
		"database.dsn":                  {"PDFREALM_DATABASE_DSN", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return errs.Wrapf(err, "bind env for %s", key)
		}
	}
	return nil
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "pdfrealm")
	v.SetDefault("app.env", "local")

	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/pdfrealm.sqlite")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 5*time.Minute)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.stream_ping_interval", 30*time.Second)
	v.SetDefault("http.stream_max_lifetime", 30*time.Minute)

	v.SetDefault("notes.work_dir", "data/secure-ai")
	v.SetDefault("notes.vault_folder", "Secure AI Notes")
	v.SetDefault("notes.include_transcript", false)
	v.SetDefault("notes.max_chunk_bytes", int64(25*1024*1024))
	v.SetDefault("notes.max_chat_transcript_bytes", int64(5*1024*1024))
	v.SetDefault("notes.max_job_error_chars", 2000)
	v.SetDefault("notes.poll_interval", 2*time.Second)
	v.SetDefault("notes.poll_initial_delay", 500*time.Millisecond)
	v.SetDefault("notes.retention_days", 7)
	v.SetDefault("notes.retention_interval", 24*time.Hour)
	v.SetDefault("notes.retention_initial_delay", 10*time.Second)
	v.SetDefault("notes.retention_batch", 200)

	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.stderr_tail", 4000)

	v.SetDefault("storage.local_root", "uploads/vault")
	v.SetDefault("storage.key_prefix", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.endpoint", "")

	v.SetDefault("transcribe.provider", "")
	v.SetDefault("transcribe.model", "gpt-4o-mini-transcribe")
	v.SetDefault("transcribe.language", "")
	v.SetDefault("transcribe.response_format", "verbose_json")
	v.SetDefault("transcribe.timeout", 5*time.Minute)

	v.SetDefault("summarize.provider", "")
	v.SetDefault("summarize.model", "gpt-4o-mini")
	v.SetDefault("summarize.max_transcript_chars", 120000)
	v.SetDefault("summarize.max_tokens", 1200)
	v.SetDefault("summarize.temperature", 0.2)
	v.SetDefault("summarize.timeout", 2*time.Minute)
	v.SetDefault("summarize.prompt_file", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")

	v.SetDefault("guest.secret", "")
	v.SetDefault("guest.video_secret", "")
	v.SetDefault("guest.voice_secret", "")
	v.SetDefault("guest.chat_secret", "")

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "pdfrealm.secure_ai")

	v.SetDefault("cache.membership_ttl", 30*time.Second)
}
