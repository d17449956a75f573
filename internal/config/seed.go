package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// TokenSpec is a token given on the command line as name=address.
type TokenSpec struct {
	Name    string
	Address string
}

// DefaultSeedTokens are tracked when the seed command gets no tokens.
var DefaultSeedTokens = []TokenSpec{
	{Name: "Ethereum", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},
	{Name: "Polygon", Address: "0x455e53CBB86018Ac2B8092FdCd39d8444aFFC3F6"},
}

// SeedConfig holds settings for the seed command.
type SeedConfig struct {
	Store      string
	PGDSN      string
	SQLitePath string
	Tokens     []TokenSpec
	Addresses  []string
	RPCURL     string
	LogLevel   string
}

// LoadSeed merges config file, environment variables, and flags into SeedConfig.
func LoadSeed(cfgFile string, flags *pflag.FlagSet) (SeedConfig, error) {
	v := viper.New()
	setStoreDefaults(v)

	if err := readConfig(v, cfgFile, flags); err != nil {
		return SeedConfig{}, err
	}

	tokens, err := ParseTokenSpecs(getStringSlice(v, "token"))
	if err != nil {
		return SeedConfig{}, err
	}

	cfg := SeedConfig{
		Store:      strings.ToLower(v.GetString("store")),
		PGDSN:      v.GetString("pg-dsn"),
		SQLitePath: v.GetString("sqlite-path"),
		Tokens:     tokens,
		Addresses:  getStringSlice(v, "address"),
		RPCURL:     v.GetString("rpc"),
		LogLevel:   v.GetString("log-level"),
	}
	if len(cfg.Tokens) == 0 && len(cfg.Addresses) == 0 {
		cfg.Tokens = append([]TokenSpec(nil), DefaultSeedTokens...)
	}

	if err := validateStore(cfg.Store, cfg.PGDSN, cfg.SQLitePath); err != nil {
		return SeedConfig{}, err
	}
	if len(cfg.Addresses) > 0 && cfg.RPCURL == "" {
		return SeedConfig{}, fmt.Errorf("rpc url is required to resolve token names")
	}
	return cfg, nil
}

// ParseTokenSpecs parses name=address pairs, keeping their order.
func ParseTokenSpecs(items []string) ([]TokenSpec, error) {
	specs := make([]TokenSpec, 0, len(items))
	for _, item := range items {
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid token %q, want name=address", item)
		}
		name := strings.TrimSpace(parts[0])
		address := strings.TrimSpace(parts[1])
		if name == "" || address == "" {
			return nil, fmt.Errorf("invalid token %q, want name=address", item)
		}
		specs = append(specs, TokenSpec{Name: name, Address: address})
	}
	return specs, nil
}
