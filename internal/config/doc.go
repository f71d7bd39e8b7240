// Package config defines configuration structures for the gulp CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (GULP_ prefix)
//   - YAML configuration file
//
// Later sources win: defaults, then the file, then the environment, then
// flags.
//
// # File
//
//	directory: ./downloads
//	quiet: false
//	limit_rate: 5MB
//	mirror: s3://my-bucket?region=us-east-1
//	history: /var/lib/gulp/history.db
//	log_level: info
//	http:
//	  dial_timeout: 10s
//	  tls_timeout: 10s
//	  header_timeout: 30s
//	  user_agent: gulp
package config
