package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. The caller is responsible for saving it.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to inkpress! Let's configure your blog.")
	fmt.Println()

	cfg := DefaultConfig()

	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	dataPrompt := promptui.Prompt{
		Label:   "Data directory (database)",
		Default: cfg.Server.DataDir,
	}
	if cfg.Server.DataDir, err = dataPrompt.Run(); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	mediaPrompt := promptui.Prompt{
		Label:   "Media directory (uploaded images)",
		Default: cfg.Server.MediaDir,
	}
	if cfg.Server.MediaDir, err = mediaPrompt.Run(); err != nil {
		return nil, fmt.Errorf("media dir: %w", err)
	}

	urlPrompt := promptui.Prompt{
		Label:   "Server URL (used by the editor and importer)",
		Default: fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
	}
	if cfg.Client.ServerURL, err = urlPrompt.Run(); err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}

	delayPrompt := promptui.Select{
		Label: "Autosave delay",
		Items: []string{"1 second", "2 seconds", "5 seconds"},
	}
	delayIdx, _, err := delayPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("autosave delay: %w", err)
	}
	cfg.Editor.AutosaveDelayMS = []int{1000, 2000, 5000}[delayIdx]

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
