// Package config handles loading and validating Estufa Core configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Loading a .env file and overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Broker settings are special: when the host or credentials are missing the
// configuration is still valid, and MQTTConfig.Configured reports false so the
// process can run its API in a degraded "not configured" state.
//
// Security Considerations:
//   - Broker passwords and the JWT secret should come from the environment
//   - tls_insecure_skip_verify is an explicit opt-in for brokers whose
//     certificate does not chain to a public CA
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !cfg.MQTT.Configured() {
//	    log.Printf("broker not configured: missing %v", cfg.MQTT.Missing())
//	}
package config
