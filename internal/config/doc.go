// Package config provides configuration management for byteforge.
//
// Settings are resolved in increasing priority: built-in defaults, the YAML
// config file (.byteforge), BYTEFORGE_* environment variables, CLI flags.
package config
