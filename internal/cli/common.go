package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mailgoat/mailgoat/internal/client"
	"github.com/mailgoat/mailgoat/internal/config"
	"github.com/mailgoat/mailgoat/internal/logging"
)

// newAPIClient builds the transport client from the global config. It
// fails fast when no API key is configured so commands never reach the
// network unauthenticated.
func newAPIClient(cmd *cobra.Command) (*client.Client, error) {
	cfg := config.GetGlobalConfig()
	if cfg.API.Key == "" {
		return nil, fmt.Errorf(
			"no API key configured: set %s or run 'mailgoat config init' and edit the config file",
			config.EnvAPIKey,
		)
	}

	return client.New(client.Config{
		APIKey:            cfg.API.Key,
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.Timeout(),
		MaxRetries:        cfg.Retry.MaxRetries,
		BaseDelay:         cfg.BaseDelay(),
		MaxDelay:          cfg.MaxDelay(),
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		BreakerThreshold:  cfg.Breaker.Threshold,
		BreakerCooldown:   cfg.BreakerCooldown(),
		Logger:            logging.ComponentLogger(*logging.FromContext(cmd.Context()), "client"),
	})
}

// jsonOutput reports whether the command should emit machine-readable JSON,
// from the --json flag or the configured default format.
func jsonOutput(cmd *cobra.Command) bool {
	if flagJSON, _ := cmd.Flags().GetBool("json"); flagJSON {
		return true
	}
	return config.GetGlobalConfig().Output.DefaultFormat == "json"
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseKeyValuePairs parses repeated key=value flag values into a map.
func parseKeyValuePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
