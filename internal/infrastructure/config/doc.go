// Package config loads backend configuration.
//
// Values come from environment variables (with defaults declared in struct
// tags) and, optionally, from a YAML or TOML file named by CONFIG_FILE.
// File values take precedence over the environment.
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	budget := cfg.Host.GrantBudget.Std()
package config
