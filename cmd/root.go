package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/ai/gemini"
	"github.com/spigell/leadscore/internal/logger"
	"github.com/spigell/leadscore/internal/secrets"
)

const (
	app = "leadscore"

	geminiAPIKeyEnv = "GEMINI_API_KEY"
)

type Config struct {
	Listen    string    `mapstructure:"listen"`
	ChunkSize int       `mapstructure:"chunk-size"`
	AI        *AIConfig `mapstructure:"ai"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey          string        `mapstructure:"api-key"`
	APIKeyFile      string        `mapstructure:"api-key-file"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	MaxOutputTokens int32         `mapstructure:"max-output-tokens"`
	MaxRetries      int           `mapstructure:"max-retries"`
	MaxLogLength    int           `mapstructure:"max-log-length"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

var (
	// Used for flags.
	cfgFile string
	envFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "leadscore qualifies sales leads against a product offer with rules and an LLM",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults(viper.GetViper())

	bindings := map[string]string{
		"ai.gemini.api-key":      geminiAPIKeyEnv,
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"listen":                 "LEADSCORE_LISTEN",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is leadscore.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "a dotenv file loaded before the config when it exists")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":3000")
	v.SetDefault("chunk-size", 5)
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	v.SetDefault("ai.gemini.temperature", 0.3)
	v.SetDefault("ai.gemini.max-output-tokens", 500)
	v.SetDefault("ai.gemini.max-retries", 2)
	v.SetDefault("ai.gemini.max-log-length", 200)
	v.SetDefault("ai.gemini.timeout", 30*time.Second)
}

func initConfig() {
	if err := loadEnvFile(envFile); err != nil {
		log.Fatal(err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// The config file is optional, everything has a default or an env binding.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

// loadEnvFile loads path into the process environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func getConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}

	return config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// newScorer builds the Gemini scorer or, with ai disabled, the fallback one.
func newScorer(ctx context.Context, cfg *AIConfig, l *zap.Logger) (ai.Scorer, error) {
	if cfg == nil || !cfg.Enabled {
		l.Warn("AI scoring disabled, every lead gets the fallback inference score")
		return ai.FallbackScorer{}, nil
	}

	g := cfg.Gemini
	if g == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  g.APIKeyFile,
		Value: g.APIKey,
		Env:   geminiAPIKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithCommonFields(l, "gemini", g.Model).With(zap.Int("ai_retry_attempts", g.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, g.Model, g.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	// the generator resolves a blank model to its default
	aiLogger := logger.WithCommonFields(l, "gemini", generator.Model())
	aiLogger.Info("AI scoring enabled")

	return gemini.NewScorer(generator, gemini.Options{
		Temperature:     g.Temperature,
		MaxOutputTokens: g.MaxOutputTokens,
		Timeout:         g.Timeout,
		MaxLogLength:    g.MaxLogLength,
	}, aiLogger), nil
}
