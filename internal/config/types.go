package config

// Config is the top-level inkpress configuration, corresponding to .inkpress.yml.
type Config struct {
	Server ServerConfig `yaml:"server" koanf:"server"`
	Client ClientConfig `yaml:"client" koanf:"client"`
	Editor EditorConfig `yaml:"editor" koanf:"editor"`
	Import ImportConfig `yaml:"import" koanf:"import"`
}

// ServerConfig holds settings for the blog server.
type ServerConfig struct {
	Port     int    `yaml:"port" koanf:"port"`
	DataDir  string `yaml:"data_dir" koanf:"data_dir"`   // SQLite database location
	MediaDir string `yaml:"media_dir" koanf:"media_dir"` // uploaded image files
	AllowAll bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// ClientConfig holds settings for the editor, importer and search clients.
type ClientConfig struct {
	ServerURL string `yaml:"server_url" koanf:"server_url"`
}

// EditorConfig holds editor session tunables.
type EditorConfig struct {
	AutosaveDelayMS   int `yaml:"autosave_delay_ms" koanf:"autosave_delay_ms"`
	SearchDelayMS     int `yaml:"search_delay_ms" koanf:"search_delay_ms"`
	ExcerptLength     int `yaml:"excerpt_length" koanf:"excerpt_length"`
	UploadConcurrency int `yaml:"upload_concurrency" koanf:"upload_concurrency"`
}

// ImportConfig holds file matching patterns for bulk markdown import.
type ImportConfig struct {
	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude" koanf:"exclude"`
}
