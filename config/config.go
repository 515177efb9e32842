package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pokt-network/bridge-core/entity"
)

type RPCConfig struct {
	Host    string   `yaml:"host"`
	Timeout Duration `yaml:"timeout"`
}

type ChainConfig struct {
	RPC *RPCConfig `yaml:"rpc"`
	// ChainID is the EVM chain id; empty for non-EVM chains.
	ChainID string `yaml:"chain_id"`
	// EmitterChainID is the chain id used by the attestation network.
	EmitterChainID uint16 `yaml:"emitter_chain_id"`
}

type ContractsConfig struct {
	WPOKT         Address `yaml:"wpokt"`
	XPOKT         Address `yaml:"xpokt"`
	Lockbox       Address `yaml:"lockbox"`
	BridgeAdapter Address `yaml:"bridge_adapter"`
	TokenBridge   Address `yaml:"token_bridge"`
	// TokenMint is the token's mint address on non-EVM chains.
	TokenMint string `yaml:"token_mint"`
}

type AttestationConfig struct {
	BaseURL           string   `yaml:"base_url"`
	PollInterval      Duration `yaml:"poll_interval"`
	MaxAttempts       int      `yaml:"max_attempts"`
	RelayPollInterval Duration `yaml:"relay_poll_interval"`
	RelayTimeout      Duration `yaml:"relay_timeout"`
}

type StoreConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
}

type BalancesConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"`
}

type SignerConfig struct {
	// PrivateKey is a hex-encoded secp256k1 key, typically provided through
	// an environment variable reference in the yaml file.
	PrivateKey string `yaml:"private_key"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

type Config struct {
	Chains      map[entity.Chain]*ChainConfig      `yaml:"chains"`
	Contracts   map[entity.Chain]*ContractsConfig  `yaml:"contracts"`
	Attestation *AttestationConfig                 `yaml:"attestation"`
	Store       *StoreConfig                       `yaml:"store"`
	Balances    *BalancesConfig                    `yaml:"balances"`
	Signer      *SignerConfig                      `yaml:"signer"`
	DBConfig    *DBConfig                          `yaml:"postgres"`
	Presenter   *PresenterConfig                   `yaml:"presenter"`
	LogLevel    Level                              `yaml:"log_level"`
}

const (
	defaultRPCTimeout        = 30 * time.Second
	defaultPollInterval      = 30 * time.Second
	defaultMaxAttempts       = 240
	defaultRelayPollInterval = 15 * time.Second
	defaultRelayTimeout      = 45 * time.Minute
	defaultRefreshInterval   = 30 * time.Second
	defaultStoreMaxEntries   = 100
)

func (cfg *Config) applyDefaults() {
	if cfg.LogLevel == 0 {
		cfg.LogLevel = Level(logrus.InfoLevel)
	}
	for _, chain := range cfg.Chains {
		if chain.RPC != nil && chain.RPC.Timeout == 0 {
			chain.RPC.Timeout = Duration(defaultRPCTimeout)
		}
	}
	if cfg.Attestation != nil {
		if cfg.Attestation.PollInterval == 0 {
			cfg.Attestation.PollInterval = Duration(defaultPollInterval)
		}
		if cfg.Attestation.MaxAttempts == 0 {
			cfg.Attestation.MaxAttempts = defaultMaxAttempts
		}
		if cfg.Attestation.RelayPollInterval == 0 {
			cfg.Attestation.RelayPollInterval = Duration(defaultRelayPollInterval)
		}
		if cfg.Attestation.RelayTimeout == 0 {
			cfg.Attestation.RelayTimeout = Duration(defaultRelayTimeout)
		}
	}
	if cfg.Store != nil && cfg.Store.MaxEntries == 0 {
		cfg.Store.MaxEntries = defaultStoreMaxEntries
	}
	if cfg.Balances == nil {
		cfg.Balances = &BalancesConfig{}
	}
	if cfg.Balances.RefreshInterval == 0 {
		cfg.Balances.RefreshInterval = Duration(defaultRefreshInterval)
	}
}

func (cfg *Config) validate() error {
	for name, chain := range cfg.Chains {
		if !name.Valid() {
			return fmt.Errorf("unknown chain %q", name)
		}
		if name.IsEVM() {
			if chain.RPC == nil || chain.RPC.Host == "" {
				return fmt.Errorf("chain %s is missing rpc host", name)
			}
			if chain.ChainID == "" {
				return fmt.Errorf("chain %s is missing chain_id", name)
			}
		}
	}
	for name := range cfg.Contracts {
		if _, ok := cfg.Chains[name]; !ok {
			return fmt.Errorf("contracts configured for unknown chain %q", name)
		}
	}
	if cfg.Attestation == nil || cfg.Attestation.BaseURL == "" {
		return fmt.Errorf("attestation base_url is required")
	}
	if cfg.Store == nil || cfg.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	return nil
}

// ChainContracts returns the contract addresses configured for a chain.
func (cfg *Config) ChainContracts(chain entity.Chain) *ContractsConfig {
	return cfg.Contracts[chain]
}

// ReadConfigWithEnv parses the yaml blob after expanding ${VAR} environment
// references, applies defaults and validates the result.
func ReadConfigWithEnv(blob []byte) (*Config, error) {
	cfg := new(Config)
	blob = []byte(os.ExpandEnv(string(blob)))
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfigWithEnv(blob)
}
