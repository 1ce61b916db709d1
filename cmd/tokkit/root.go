package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-tokkit/internal/artifact"
	"github.com/example/go-tokkit/internal/config"
	"github.com/example/go-tokkit/internal/engine"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
	cfgLoaded bool
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "tokkit",
		Short: "Multi-scheme tokenizer command line",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			cfgLoaded = true
			setupLogger(loaded.Log.Level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newVocabCmd())
	cmd.AddCommand(newSchemesCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLogLevel(levelStr)})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if !cfgLoaded {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// newInstance creates an engine instance for the configured scheme and loads
// every artifact path the config names.
func newInstance(cfg config.Config) (*engine.Instance, error) {
	scheme, err := engine.ParseScheme(cfg.Tokenizer.Scheme)
	if err != nil {
		return nil, err
	}

	var flags engine.Flags
	if cfg.Tokenizer.UTF8Safe {
		flags |= engine.FlagUTF8Safe
	}

	in, err := engine.New(scheme, flags)
	if err != nil {
		return nil, err
	}

	paths := []struct {
		kind artifact.Kind
		path string
	}{
		{artifact.KindModel, cfg.Artifacts.ModelPath},
		{artifact.KindDictionary, cfg.Artifacts.DictionaryPath},
		{artifact.KindVocab, cfg.Artifacts.VocabPath},
		{artifact.KindMerges, cfg.Artifacts.MergesPath},
		{artifact.KindAddedTokens, cfg.Artifacts.AddedTokensPath},
		{artifact.KindConfig, cfg.Artifacts.ConfigPath},
	}
	for _, p := range paths {
		if p.path == "" {
			continue
		}
		if err := in.LoadArtifactFile(p.kind, p.path); err != nil {
			_ = in.Close()
			return nil, err
		}
		slog.Debug("artifact loaded", "kind", p.kind.String(), "path", p.path)
	}

	return in, nil
}
