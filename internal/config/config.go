package config

// Config represents the top-level configuration structure for buildtime.
type Config struct {
	Store   Store   `yaml:"store"`
	History History `yaml:"history"`
	Logging Logging `yaml:"logging"`
}

// Store configuration for build history persistence.
type Store struct {
	Driver string `yaml:"driver"` // "json" or "bbolt"
	Dir    string `yaml:"dir"`    // data directory; default <UserConfigDir>/BuildTimeTracker
}

// History controls how stored history is interpreted.
type History struct {
	RetentionDays int `yaml:"retention_days"` // written into new records, never enforced
	LookbackDays  int `yaml:"lookback_days"`  // session summary looks back this many days
}

// Logging configures the structured logger.
type Logging struct {
	Format string `yaml:"format"` // "json" or "text"
	Level  string `yaml:"level"`  // debug, info, warn, error
	Output string `yaml:"output"` // stderr, stdout, discard, or a file path
}
