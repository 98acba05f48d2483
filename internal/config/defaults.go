package config

const (
	defaultConfigPath    = "~/.config/warmstart/config.toml"
	defaultLogFormat     = "console"
	defaultLogLevel      = "warn"
	defaultListenBacklog = 5
	maxListenBacklog     = 4096
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Spawn: Spawn{
			ListenBacklog: defaultListenBacklog,
		},
	}
}
