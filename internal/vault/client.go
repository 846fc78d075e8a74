// Package vault fetches venue credentials from a HashiCorp Vault KV v2
// secret store.
package vault

import (
	"context"
	"fmt"
	"strconv"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/config"
	"github.com/koshedutech/binance-futures-bot/internal/execution"
)

// Client reads venue credentials from the configured secret path.
type Client struct {
	api        *vaultapi.Client
	mountPath  string
	secretPath string
	log        zerolog.Logger
}

// NewClient connects to Vault. Returns (nil, nil) when the store is
// disabled; callers then fall back to static configuration.
func NewClient(cfg config.VaultConfig, log zerolog.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	vaultCfg := vaultapi.DefaultConfig()
	vaultCfg.Address = cfg.Address
	vaultCfg.Timeout = 10 * time.Second

	api, err := vaultapi.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	api.SetToken(cfg.Token)

	return &Client{
		api:        api,
		mountPath:  cfg.MountPath,
		secretPath: cfg.SecretPath,
		log:        log,
	}, nil
}

// GetCredentials reads the venue credential set from the KV store.
// Expected fields: api_key, secret_key, testnet.
func (c *Client) GetCredentials(ctx context.Context) (execution.Credentials, error) {
	secret, err := c.api.KVv2(c.mountPath).Get(ctx, c.secretPath)
	if err != nil {
		return execution.Credentials{}, fmt.Errorf("failed to read secret %s: %w", c.secretPath, err)
	}

	creds := execution.Credentials{
		APIKey:    asString(secret.Data["api_key"]),
		SecretKey: asString(secret.Data["secret_key"]),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return execution.Credentials{}, fmt.Errorf("secret %s is missing api_key or secret_key", c.secretPath)
	}

	if v, ok := secret.Data["testnet"]; ok {
		creds.Testnet = asBool(v)
	}

	c.log.Info().Str("path", c.secretPath).Bool("testnet", creds.Testnet).
		Msg("credentials loaded from vault")
	return creds, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	default:
		return false
	}
}
