// Package config loads and validates the inventory service configuration.
//
// Values are resolved in three layers: hard-coded defaults, the YAML file,
// then INVENTORY_* environment variables. Secrets (JWT secret, MQTT and
// InfluxDB credentials, bootstrap password) should be supplied through the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.API.Port)
package config
