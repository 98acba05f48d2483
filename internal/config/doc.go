// Package config loads, normalizes, and validates warmstart configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads an optional TOML file, and honours WARMSTART_LOG_*
// environment overrides. Both the client and the reference daemon obtain
// their settings here so log routing and spawn parameters agree.
//
// The socket rendezvous path is not configurable; see package rendezvous.
package config
