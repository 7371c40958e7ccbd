// Package config provides the configuration of trustscan: defaults,
// validation, the optional YAML file and the environment overlay.
package config
