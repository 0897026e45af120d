// Package setup registers the PharmaGuard MCP server with desktop MCP clients
// and reports on the local installation.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	// SERVER_KEY is the entry name written under mcpServers.
	SERVER_KEY = "pharmaguard"

	DATA_DIR_ENV = "PHARMAGUARD_DATA_DIR"
)

// ClientConfig is the desktop client configuration file. Unknown top-level
// keys are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry launches one MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls Configure.
type Options struct {
	ConfigPath string // defaults to ClientConfigPath()
	BinaryPath string // defaults to the lite binary found on disk
	DataDir    string
	Transport  string
}

// ClientConfigPath returns the per-OS location of claude_desktop_config.json.
func ClientConfigPath() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		dir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
	return filepath.Join(dir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads path. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]ServerEntry{}, extra: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerEntry{}
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *ClientConfig) Save(path string) error {
	out := make(map[string]any, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Configure adds or replaces the PharmaGuard entry and returns it.
func Configure(opts Options) (*ServerEntry, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = ClientConfigPath(); err != nil {
			return nil, err
		}
	}

	binary := opts.BinaryPath
	if binary == "" {
		var err error
		if binary, err = findBinary(); err != nil {
			return nil, fmt.Errorf("could not find server binary: %w", err)
		}
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	entry := ServerEntry{Command: binary, Env: map[string]string{}}
	if opts.DataDir != "" {
		entry.Env[DATA_DIR_ENV] = opts.DataDir
	}
	if opts.Transport != "" {
		entry.Env["PHARMAGUARD_TRANSPORT"] = opts.Transport
	}
	cfg.MCPServers[SERVER_KEY] = entry

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	return &entry, nil
}

func findBinary() (string, error) {
	const name = "mcp-server-lite"
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	for _, loc := range []string{
		"./" + name,
		"./bin/" + name,
		filepath.Join(home, ".local", "bin", name),
		"/usr/local/bin/" + name,
	} {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}
	return "", fmt.Errorf("binary %q not found in common locations", name)
}

// Status describes the local installation.
type Status struct {
	ConfigPath string   `json:"config_path"`
	Configured bool     `json:"configured"`
	BinaryPath string   `json:"binary_path,omitempty"`
	DataDir    string   `json:"data_dir"`
	FeedbackDB bool     `json:"feedback_db_present"`
	Issues     []string `json:"issues"`
}

// GetStatus inspects the client config at configPath (or the default path)
// and the data directory it points to.
func GetStatus(configPath, defaultDataDir string) (*Status, error) {
	if configPath == "" {
		var err error
		if configPath, err = ClientConfigPath(); err != nil {
			return nil, err
		}
	}
	status := &Status{ConfigPath: configPath, DataDir: defaultDataDir, Issues: []string{}}

	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		status.Issues = append(status.Issues, err.Error())
		return status, nil
	}

	entry, ok := cfg.MCPServers[SERVER_KEY]
	if !ok {
		status.Issues = append(status.Issues, "PharmaGuard is not registered with the MCP client")
	} else {
		status.Configured = true
		status.BinaryPath = entry.Command
		if _, err := os.Stat(entry.Command); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
		}
		if dir := entry.Env[DATA_DIR_ENV]; dir != "" {
			status.DataDir = dir
		}
	}

	if _, err := os.Stat(filepath.Join(status.DataDir, "feedback.db")); err == nil {
		status.FeedbackDB = true
	}
	return status, nil
}
