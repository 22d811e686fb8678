package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ClientConfigFileName is the client config file in the user's home directory.
const ClientConfigFileName = ".toolregistry.yaml"

// ClientConfig is what `toolregistry login` saves for later commands.
type ClientConfig struct {
	RegistryURL string `yaml:"registry_url,omitempty"`
	AccessToken string `yaml:"access_token,omitempty"`
}

func clientConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ClientConfigFileName), nil
}

// readClientConfig returns an empty config if the file does not exist yet.
func readClientConfig(fs afero.Fs) (*ClientConfig, error) {
	path, err := clientConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return &ClientConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client config %s: %w", path, err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config %s: %w", path, err)
	}
	return &cfg, nil
}

// writeClientConfig replaces the client config file. It holds a credential, so only the owner may read it.
func writeClientConfig(fs afero.Fs, cfg *ClientConfig) (string, error) {
	path, err := clientConfigPath()
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode client config: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write client config %s: %w", path, err)
	}
	return path, nil
}
