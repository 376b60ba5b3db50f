package config

// DefaultExcludes are glob patterns skipped during bulk import by default.
var DefaultExcludes = []string{
	"node_modules/**",
	".git/**",
	"vendor/**",
	"README.md",
	"**/README.md",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8745,
			DataDir:  ".inkpress",
			MediaDir: ".inkpress/media",
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8745",
		},
		Editor: EditorConfig{
			AutosaveDelayMS:   2000,
			SearchDelayMS:     250,
			ExcerptLength:     194,
			UploadConcurrency: 4,
		},
		Import: ImportConfig{
			Include: []string{"**/*.md"},
			Exclude: DefaultExcludes,
		},
	}
}
