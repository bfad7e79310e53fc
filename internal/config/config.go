package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	Timeout        string
	Retries        int
	Chain          string
	RPCURL         string
	SlippageBps    int64
	DeadlineTTL    string
	NoSimulate     bool
	GasMultiplier  float64
	MaxFeeGwei     string
	MaxPriorityFee string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	Timeout        time.Duration
	Retries        int
	Chain          string
	RPCURL         string
	QuoteBaseURL   string
	QuoteAPIKey    string
	TxlogPath      string
	TxlogLockPath  string
	SlippageBps    int64
	DeadlineTTL    time.Duration
	PermitTTL      time.Duration
	Simulate       bool
	GasMultiplier  float64
	MaxFeeGwei     string
	MaxPriorityFee string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Chain   string `yaml:"chain"`
	RPC     struct {
		URL string `yaml:"url"`
	} `yaml:"rpc"`
	Quote struct {
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"quote"`
	Txlog struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"txlog"`
	Swap struct {
		SlippageBps *int64 `yaml:"slippage_bps"`
		DeadlineTTL string `yaml:"deadline_ttl"`
		PermitTTL   string `yaml:"permit_ttl"`
	} `yaml:"swap"`
	Gas struct {
		Simulate       *bool   `yaml:"simulate"`
		Multiplier     float64 `yaml:"multiplier"`
		MaxFeeGwei     string  `yaml:"max_fee_gwei"`
		MaxPriorityFee string  `yaml:"max_priority_fee_gwei"`
	} `yaml:"gas"`
}

func Load(flags GlobalFlags) (Settings, error) {
	// .env files are a convenience for local keys; absence is fine.
	_ = godotenv.Load()

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
		settings.Timeout = 30 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.SlippageBps <= 0 {
		settings.SlippageBps = 50
	}
	if settings.DeadlineTTL <= 0 {
		settings.DeadlineTTL = 20 * time.Minute
	}
	if settings.PermitTTL <= 0 {
		settings.PermitTTL = 30 * time.Minute
	}
	if settings.GasMultiplier <= 1 {
		settings.GasMultiplier = 1.2
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	txlogPath, lockPath, err := defaultTxlogPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:    "json",
		Timeout:       30 * time.Second,
		Retries:       2,
		Chain:         "ethereum",
		TxlogPath:     txlogPath,
		TxlogLockPath: lockPath,
		SlippageBps:   50,
		DeadlineTTL:   20 * time.Minute,
		PermitTTL:     30 * time.Minute,
		Simulate:      true,
		GasMultiplier: 1.2,
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
	return filepath.Join(base, "swapflow", "config.yaml"), nil
}

func defaultTxlogPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "swapflow")
	return filepath.Join(dir, "txlog.db"), filepath.Join(dir, "txlog.lock"), nil
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
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Chain != "" {
		settings.Chain = cfg.Chain
	}
	if cfg.RPC.URL != "" {
		settings.RPCURL = cfg.RPC.URL
	}
	if cfg.Quote.BaseURL != "" {
		settings.QuoteBaseURL = cfg.Quote.BaseURL
	}
	if cfg.Quote.APIKey != "" {
		settings.QuoteAPIKey = cfg.Quote.APIKey
	}
	if cfg.Quote.APIKeyEnv != "" {
		settings.QuoteAPIKey = os.Getenv(cfg.Quote.APIKeyEnv)
	}
	if cfg.Txlog.Path != "" {
		settings.TxlogPath = cfg.Txlog.Path
	}
	if cfg.Txlog.LockPath != "" {
		settings.TxlogLockPath = cfg.Txlog.LockPath
	}
	if cfg.Swap.SlippageBps != nil {
		settings.SlippageBps = *cfg.Swap.SlippageBps
	}
	if cfg.Swap.DeadlineTTL != "" {
		d, err := time.ParseDuration(cfg.Swap.DeadlineTTL)
		if err != nil {
			return fmt.Errorf("config swap.deadline_ttl: %w", err)
		}
		settings.DeadlineTTL = d
	}
	if cfg.Swap.PermitTTL != "" {
		d, err := time.ParseDuration(cfg.Swap.PermitTTL)
		if err != nil {
			return fmt.Errorf("config swap.permit_ttl: %w", err)
		}
		settings.PermitTTL = d
	}
	if cfg.Gas.Simulate != nil {
		settings.Simulate = *cfg.Gas.Simulate
	}
	if cfg.Gas.Multiplier > 0 {
		settings.GasMultiplier = cfg.Gas.Multiplier
	}
	if cfg.Gas.MaxFeeGwei != "" {
		settings.MaxFeeGwei = cfg.Gas.MaxFeeGwei
	}
	if cfg.Gas.MaxPriorityFee != "" {
		settings.MaxPriorityFee = cfg.Gas.MaxPriorityFee
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("SWAPFLOW_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SWAPFLOW_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("SWAPFLOW_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("SWAPFLOW_CHAIN"); v != "" {
		settings.Chain = v
	}
	if v := os.Getenv("SWAPFLOW_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("SWAPFLOW_QUOTE_BASE_URL"); v != "" {
		settings.QuoteBaseURL = v
	}
	if v := os.Getenv("SWAPFLOW_QUOTE_API_KEY"); v != "" {
		settings.QuoteAPIKey = v
	}
	if v := os.Getenv("SWAPFLOW_TXLOG_PATH"); v != "" {
		settings.TxlogPath = v
	}
	if v := os.Getenv("SWAPFLOW_TXLOG_LOCK_PATH"); v != "" {
		settings.TxlogLockPath = v
	}
	if v := os.Getenv("SWAPFLOW_SLIPPAGE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.SlippageBps = n
		}
	}
	if v := os.Getenv("SWAPFLOW_DEADLINE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.DeadlineTTL = d
		}
	}
	if v := os.Getenv("SWAPFLOW_PERMIT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.PermitTTL = d
		}
	}
	if v := os.Getenv("SWAPFLOW_NO_SIMULATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Simulate = !b
		}
	}
	if v := os.Getenv("SWAPFLOW_GAS_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.GasMultiplier = f
		}
	}
	if v := os.Getenv("SWAPFLOW_MAX_FEE_GWEI"); v != "" {
		settings.MaxFeeGwei = v
	}
	if v := os.Getenv("SWAPFLOW_MAX_PRIORITY_FEE_GWEI"); v != "" {
		settings.MaxPriorityFee = v
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
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

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
	if flags.Chain != "" {
		settings.Chain = flags.Chain
	}
	if flags.RPCURL != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.SlippageBps > 0 {
		settings.SlippageBps = flags.SlippageBps
	}
	if flags.DeadlineTTL != "" {
		d, err := time.ParseDuration(flags.DeadlineTTL)
		if err != nil {
			return fmt.Errorf("parse --deadline-ttl: %w", err)
		}
		settings.DeadlineTTL = d
	}
	if flags.NoSimulate {
		settings.Simulate = false
	}
	if flags.GasMultiplier > 1 {
		settings.GasMultiplier = flags.GasMultiplier
	}
	if flags.MaxFeeGwei != "" {
		settings.MaxFeeGwei = flags.MaxFeeGwei
	}
	if flags.MaxPriorityFee != "" {
		settings.MaxPriorityFee = flags.MaxPriorityFee
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
