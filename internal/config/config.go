package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Log       LogConfig       `mapstructure:"log"`
}

type TokenizerConfig struct {
	Scheme   string `mapstructure:"scheme"`
	UTF8Safe bool   `mapstructure:"utf8_safe"`
}

// ArtifactsConfig holds one file path per artifact kind; empty entries are
// simply not loaded.
type ArtifactsConfig struct {
	ModelPath       string `mapstructure:"model_path"`
	DictionaryPath  string `mapstructure:"dictionary_path"`
	VocabPath       string `mapstructure:"vocab_path"`
	MergesPath      string `mapstructure:"merges_path"`
	AddedTokensPath string `mapstructure:"added_tokens_path"`
	ConfigPath      string `mapstructure:"config_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Tokenizer: TokenizerConfig{
			Scheme:   "gpt2",
			UTF8Safe: false,
		},
		Artifacts: ArtifactsConfig{},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("tokenizer-scheme", defaults.Tokenizer.Scheme, "Tokenization scheme")
	fs.Bool("tokenizer-utf8-safe", defaults.Tokenizer.UTF8Safe, "Filter decode output to valid UTF-8")
	fs.String("artifacts-model-path", defaults.Artifacts.ModelPath, "Path to SentencePiece model file")
	fs.String("artifacts-dictionary-path", defaults.Artifacts.DictionaryPath, "Path to segmentation dictionary file")
	fs.String("artifacts-vocab-path", defaults.Artifacts.VocabPath, "Path to vocabulary file")
	fs.String("artifacts-merges-path", defaults.Artifacts.MergesPath, "Path to BPE merges file")
	fs.String("artifacts-added-tokens-path", defaults.Artifacts.AddedTokensPath, "Path to added-tokens file")
	fs.String("artifacts-config-path", defaults.Artifacts.ConfigPath, "Path to tokenizer config file")
	fs.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("TOKKIT")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("tokkit")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("tokenizer.scheme", c.Tokenizer.Scheme)
	v.SetDefault("tokenizer.utf8_safe", c.Tokenizer.UTF8Safe)
	v.SetDefault("artifacts.model_path", c.Artifacts.ModelPath)
	v.SetDefault("artifacts.dictionary_path", c.Artifacts.DictionaryPath)
	v.SetDefault("artifacts.vocab_path", c.Artifacts.VocabPath)
	v.SetDefault("artifacts.merges_path", c.Artifacts.MergesPath)
	v.SetDefault("artifacts.added_tokens_path", c.Artifacts.AddedTokensPath)
	v.SetDefault("artifacts.config_path", c.Artifacts.ConfigPath)
	v.SetDefault("log.level", c.Log.Level)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("tokenizer.scheme", "tokenizer-scheme")
	v.RegisterAlias("tokenizer.utf8_safe", "tokenizer-utf8-safe")
	v.RegisterAlias("artifacts.model_path", "artifacts-model-path")
	v.RegisterAlias("artifacts.dictionary_path", "artifacts-dictionary-path")
	v.RegisterAlias("artifacts.vocab_path", "artifacts-vocab-path")
	v.RegisterAlias("artifacts.merges_path", "artifacts-merges-path")
	v.RegisterAlias("artifacts.added_tokens_path", "artifacts-added-tokens-path")
	v.RegisterAlias("artifacts.config_path", "artifacts-config-path")
	v.RegisterAlias("log.level", "log-level")
}

// ParseLogLevel maps a level name to its slog value, defaulting to info for
// unknown names.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
