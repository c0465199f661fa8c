package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Models  ModelsConfig
	Storage StorageConfig
	LLM     LLMConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	CORSOrigins  []string
}

type SQLiteConfig struct {
	Path string
}

// ModelsConfig points at the runtime model-registry document (config.json),
// which is managed separately from these process settings.
type ModelsConfig struct {
	RegistryPath string
}

type StorageConfig struct {
	UploadDir    string
	ProcessedDir string
	MaxFileSize  int64
}

type LLMConfig struct {
	Mode         string // "stub" or "openai"
	StubDelayMS  int
	APIKey       string
	BaseURL      string
	TimeoutSec   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("settings")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/simuagent")

	viper.SetEnvPrefix("SIMUAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 52428800)
	viper.SetDefault("server.corsOrigins", []string{"http://localhost:5173"})

	viper.SetDefault("sqlite.path", "./database/simuagent.db")

	viper.SetDefault("models.registryPath", "./config.json")

	viper.SetDefault("storage.uploadDir", "./data/uploads")
	viper.SetDefault("storage.processedDir", "./data/processed")
	viper.SetDefault("storage.maxFileSize", 50*1024*1024)

	viper.SetDefault("llm.mode", "stub")
	viper.SetDefault("llm.stubDelayMS", 500)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
