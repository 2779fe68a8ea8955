// Package config loads voxd's settings from the config file and the
// environment, and persists the runtime state between runs.
package config
