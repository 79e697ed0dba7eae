// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the monitor's settings: listen
// address, probe target and timing, observer queue size and log level.
//
// Every key can be overridden from the environment with dots replaced by
// underscores (PROBE_TARGET, PROBE_INTERVAL, ...). The listen port also
// honours PORT.
package config
