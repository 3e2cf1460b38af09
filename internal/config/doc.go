// Package config handles configuration loading for beykus-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. Variables from .env files can be loaded into the environment
// first with LoadDotEnv; variables that are already set win.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from BEYKUS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/beykus/gateway.yaml (~/.config/beykus/gateway.yaml)
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${BEYKUS_JWT_SECRET}"
//	provider:
//	  api_key: "${GEMINI_API_KEY}"
//
// Unset variables expand to the empty string.
//
// # Example
//
//	server:
//	  http_addr: "0.0.0.0:5000"
//	database:
//	  path: "./database.db"
//	auth:
//	  jwt_secret: "${BEYKUS_JWT_SECRET}"   # at least 32 bytes
//	  token_ttl: "24h"
//	provider:
//	  kind: "openai"                       # or "loopback"
//	  api_key: "${GEMINI_API_KEY}"
//	  request_timeout: "30s"
//	  fragment_timeout: "60s"
//	  temperature: 0.8
//	  top_p: 0.9
//	  prompts_path: "./prompts.toml"
//	sessions:
//	  default_model: "BEYKUS_SMALL"
//	  idle_timeout: "1h"
//	logging:
//	  level: "info"
//	  format: "text"                       # or "json"
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Durations use time.ParseDuration syntax. Unset fields get the Default*
// values; sessions.default_model accepts either a model id or its display
// name and is normalised to the id.
package config
