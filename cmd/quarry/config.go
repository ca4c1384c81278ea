package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration file. Flags override it.
type Config struct {
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	AI *struct {
		Host            string `yaml:"host"`
		EmbeddingModel  string `yaml:"embedding_model"`
		ExtractorModel  string `yaml:"extractor_model"`
		Dimension       int    `yaml:"dimension"`
		MinImportance   int    `yaml:"min_importance"`
		ExtractConcepts *bool  `yaml:"extract_concepts"`
	} `yaml:"ai"`

	Transcribe *struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"transcribe"`

	Jobs *struct {
		PollBaseDelaySeconds int `yaml:"poll_base_delay_seconds"`
		PollMaxDelaySeconds  int `yaml:"poll_max_delay_seconds"`
		PollTimeoutSeconds   int `yaml:"poll_timeout_seconds"`
		WriteAttempts        int `yaml:"write_attempts"`
		LeaseTTLSeconds      int `yaml:"lease_ttl_seconds"`
	} `yaml:"jobs"`
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func readConfig(cfgPath string) (*Config, error) {
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := &Config{}
	dec := yaml.NewDecoder(cfgFile)
	err = dec.Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	return cfg, nil
}
