package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags carries the persistent command-line flags. Flags win over
// environment variables, which win over the config file.
type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	EnableCommands string
	Timeout        string
	Retries        int
	QuoteTTL       string
	SlippageBps    int64
	KeySource      string
	LogLevel       string
	NoHistory      bool
}

type Settings struct {
	OutputMode      string
	EnableCommands  []string
	Timeout         time.Duration
	ConfirmTimeout  time.Duration
	Retries         int
	QuoteTTL        time.Duration
	SlippageBps     int64
	KeySource       string
	LogLevel        string
	HistoryEnabled  bool
	HistoryPath     string
	HistoryLockPath string
	RPCOverrides    map[string]string
	SolanaRPCURL    string
	JupiterAPIKey   string
	LiFiAPIKey      string
}

type fileConfig struct {
	Output         string `yaml:"output"`
	Timeout        string `yaml:"timeout"`
	ConfirmTimeout string `yaml:"confirm_timeout"`
	Retries        *int   `yaml:"retries"`
	QuoteTTL       string `yaml:"quote_ttl"`
	SlippageBps    *int64 `yaml:"slippage_bps"`
	LogLevel       string `yaml:"log_level"`
	Wallet         struct {
		KeySource string `yaml:"key_source"`
	} `yaml:"wallet"`
	History struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"history"`
	RPC struct {
		Solana    string            `yaml:"solana"`
		Endpoints map[string]string `yaml:"endpoints"`
	} `yaml:"rpc"`
	Providers struct {
		Jupiter struct {
			APIKey    string `yaml:"api_key"`
			APIKeyEnv string `yaml:"api_key_env"`
		} `yaml:"jupiter"`
		LiFi struct {
			APIKey    string `yaml:"api_key"`
			APIKeyEnv string `yaml:"api_key_env"`
		} `yaml:"lifi"`
	} `yaml:"providers"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	if settings.ConfirmTimeout <= 0 {
		settings.ConfirmTimeout = 2 * time.Minute
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.QuoteTTL <= 0 {
		settings.QuoteTTL = 10 * time.Minute
	}
	if settings.SlippageBps <= 0 {
		settings.SlippageBps = 50
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	historyPath, lockPath, err := defaultHistoryPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		Timeout:         15 * time.Second,
		ConfirmTimeout:  2 * time.Minute,
		Retries:         2,
		QuoteTTL:        10 * time.Minute,
		SlippageBps:     50,
		KeySource:       "auto",
		LogLevel:        "warn",
		HistoryEnabled:  true,
		HistoryPath:     historyPath,
		HistoryLockPath: lockPath,
		RPCOverrides:    map[string]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "defi-agent", "config.yaml"), nil
}

func defaultHistoryPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "defi-agent")
	return filepath.Join(dir, "executions.db"), filepath.Join(dir, "executions.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.ConfirmTimeout != "" {
		d, err := time.ParseDuration(cfg.ConfirmTimeout)
		if err != nil {
			return fmt.Errorf("config confirm_timeout: %w", err)
		}
		settings.ConfirmTimeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.QuoteTTL != "" {
		d, err := time.ParseDuration(cfg.QuoteTTL)
		if err != nil {
			return fmt.Errorf("config quote_ttl: %w", err)
		}
		settings.QuoteTTL = d
	}
	if cfg.SlippageBps != nil {
		settings.SlippageBps = *cfg.SlippageBps
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if cfg.Wallet.KeySource != "" {
		settings.KeySource = strings.ToLower(cfg.Wallet.KeySource)
	}
	if cfg.History.Enabled != nil {
		settings.HistoryEnabled = *cfg.History.Enabled
	}
	if cfg.History.Path != "" {
		settings.HistoryPath = cfg.History.Path
	}
	if cfg.History.LockPath != "" {
		settings.HistoryLockPath = cfg.History.LockPath
	}
	if cfg.RPC.Solana != "" {
		settings.SolanaRPCURL = cfg.RPC.Solana
	}
	for network, url := range cfg.RPC.Endpoints {
		if strings.TrimSpace(url) != "" {
			settings.RPCOverrides[network] = url
		}
	}
	if cfg.Providers.Jupiter.APIKey != "" {
		settings.JupiterAPIKey = cfg.Providers.Jupiter.APIKey
	}
	if cfg.Providers.Jupiter.APIKeyEnv != "" {
		settings.JupiterAPIKey = os.Getenv(cfg.Providers.Jupiter.APIKeyEnv)
	}
	if cfg.Providers.LiFi.APIKey != "" {
		settings.LiFiAPIKey = cfg.Providers.LiFi.APIKey
	}
	if cfg.Providers.LiFi.APIKeyEnv != "" {
		settings.LiFiAPIKey = os.Getenv(cfg.Providers.LiFi.APIKeyEnv)
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("DEFI_AGENT_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("DEFI_AGENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("DEFI_AGENT_CONFIRM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.ConfirmTimeout = d
		}
	}
	if v := os.Getenv("DEFI_AGENT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("DEFI_AGENT_QUOTE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.QuoteTTL = d
		}
	}
	if v := os.Getenv("DEFI_AGENT_SLIPPAGE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.SlippageBps = n
		}
	}
	if v := os.Getenv("DEFI_AGENT_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("DEFI_AGENT_KEY_SOURCE"); v != "" {
		settings.KeySource = strings.ToLower(v)
	}
	if v := os.Getenv("DEFI_AGENT_NO_HISTORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.HistoryEnabled = !b
		}
	}
	if v := os.Getenv("DEFI_AGENT_HISTORY_PATH"); v != "" {
		settings.HistoryPath = v
	}
	if v := os.Getenv("DEFI_AGENT_HISTORY_LOCK_PATH"); v != "" {
		settings.HistoryLockPath = v
	}
	if v := os.Getenv("DEFI_AGENT_SOLANA_RPC_URL"); v != "" {
		settings.SolanaRPCURL = v
	}
	if v := os.Getenv("DEFI_AGENT_JUPITER_API_KEY"); v != "" {
		settings.JupiterAPIKey = v
	}
	if v := os.Getenv("DEFI_AGENT_LIFI_API_KEY"); v != "" {
		settings.LiFiAPIKey = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}

	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.QuoteTTL != "" {
		d, err := time.ParseDuration(flags.QuoteTTL)
		if err != nil {
			return fmt.Errorf("parse --quote-ttl: %w", err)
		}
		settings.QuoteTTL = d
	}
	if flags.SlippageBps > 0 {
		settings.SlippageBps = flags.SlippageBps
	}
	if flags.KeySource != "" {
		settings.KeySource = strings.ToLower(flags.KeySource)
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}
	if flags.NoHistory {
		settings.HistoryEnabled = false
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
