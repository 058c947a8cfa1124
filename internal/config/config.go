package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	// AgentURL is the base URL of the conversational agent API.
	AgentURL string
	// BackendURL is the base URL of the finance backend (imports, aliases,
	// reports). Defaults to AgentURL when unset.
	BackendURL string

	// AuthURL is the base URL of the Supabase-compatible auth service.
	// When empty the assistant runs without authentication.
	AuthURL string
	// AuthAnonKey is the project API key sent alongside auth requests.
	AuthAnonKey string

	// AssistantHome is the directory where the assistant stores local state.
	AssistantHome string
	// PrefsPath is the path to the persisted preferences file.
	PrefsPath string
	// SessionPath is the path to the stored auth session file.
	SessionPath string
	// LogPath is the log file. The terminal UI owns stdout, so logs go to
	// a file.
	LogPath string

	// Debug enables verbose logging and the directive debug view.
	Debug bool
	// InstantReveal disables the typewriter animation.
	InstantReveal bool
}

// Load loads configuration from environment and defaults
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	assistantHome := getenvFirst("ASSISTANT_HOME_DIR", "IAFA_HOME_DIR")
	if assistantHome == "" {
		assistantHome = filepath.Join(homeDir, ".financial-assistant")
	}

	// Ensure the state directory exists
	if err := os.MkdirAll(assistantHome, 0700); err != nil {
		return nil, fmt.Errorf("failed to create assistant home: %w", err)
	}

	agentURL := getenvFirst("ASSISTANT_AGENT_URL", "IAFA_AGENT_URL")
	if agentURL == "" {
		agentURL = "http://localhost:8000"
	}
	backendURL := getenvFirst("ASSISTANT_BACKEND_URL", "IAFA_BACKEND_URL")
	if backendURL == "" {
		backendURL = agentURL
	}

	debug := os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1"
	if !debug {
		debug = getenvFirst("ASSISTANT_DEBUG", "IAFA_DEBUG") == "true" ||
			getenvFirst("ASSISTANT_DEBUG", "IAFA_DEBUG") == "1"
	}
	instant := getenvFirst("ASSISTANT_NO_TYPEWRITER", "IAFA_NO_TYPEWRITER") == "true" ||
		getenvFirst("ASSISTANT_NO_TYPEWRITER", "IAFA_NO_TYPEWRITER") == "1"

	return &Config{
		AgentURL:      agentURL,
		BackendURL:    backendURL,
		AuthURL:       getenvFirst("ASSISTANT_AUTH_URL", "IAFA_AUTH_URL"),
		AuthAnonKey:   getenvFirst("ASSISTANT_AUTH_ANON_KEY", "IAFA_AUTH_ANON_KEY"),
		AssistantHome: assistantHome,
		PrefsPath:     filepath.Join(assistantHome, "prefs.json"),
		SessionPath:   filepath.Join(assistantHome, "session.json"),
		LogPath:       filepath.Join(assistantHome, "assistant.log"),
		Debug:         debug,
		InstantReveal: instant,
	}, nil
}

// Save saves configuration to disk (currently just creates directories)
func (c *Config) Save() error {
	return os.MkdirAll(c.AssistantHome, 0700)
}

func getenvFirst(primary, fallback string) string {
	if val := os.Getenv(primary); val != "" {
		return val
	}
	return os.Getenv(fallback)
}
