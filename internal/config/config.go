package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-ini/ini"
	toml "github.com/pelletier/go-toml/v2"
)

// Tracking describes one tracked XNAT server/project pair.
type Tracking struct {
	URL            string `toml:"url"`
	Project        string `toml:"project"`
	Path           string `toml:"path"`
	CredentialName string `toml:"credential_name"`
}

// Config is the per-dataset tracking configuration.
type Config struct {
	DefaultName string              `toml:"default_name,omitempty"`
	XNAT        map[string]Tracking `toml:"xnat,omitempty"`
}

// Provider tells datalad's downloaders how to authenticate against a server.
type Provider struct {
	Name               string
	URLPattern         string
	Credential         string
	AuthenticationType string
	CredentialType     string
}

const (
	// DefaultPathSpec lays files out as subject/session/scan/.
	DefaultPathSpec = "{subject}/{session}/{scan}/"

	dirName      = ".xnatrack"
	fileName     = "config.toml"
	dataladDir   = ".datalad"
	providersDir = "providers"
	defaultName  = "default"
	nameEnv      = "XNATRACK_DEFAULT_NAME"
)

// Dir returns the configuration directory of a dataset.
func Dir(dataset string) string {
	return filepath.Join(dataset, dirName)
}

// FilePath returns the configuration file of a dataset.
func FilePath(dataset string) string {
	return filepath.Join(Dir(dataset), fileName)
}

// ProviderPath returns the datalad provider file written for a
// configuration name.
func ProviderPath(dataset, name string) string {
	return filepath.Join(dataset, dataladDir, providersDir, "xnat-"+name+".cfg")
}

// Load reads the dataset configuration. A missing file yields an empty
// configuration.
func Load(dataset string) (Config, error) {
	cfg := Config{XNAT: map[string]Tracking{}}

	file, err := os.Open(FilePath(dataset))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.XNAT == nil {
		cfg.XNAT = map[string]Tracking{}
	}
	for name, t := range cfg.XNAT {
		t.URL = strings.TrimRight(strings.TrimSpace(t.URL), "/")
		t.Project = strings.TrimSpace(t.Project)
		if strings.TrimSpace(t.Path) == "" {
			t.Path = DefaultPathSpec
		}
		cfg.XNAT[name] = t
	}
	return cfg, nil
}

// Name returns the active configuration name: $XNATRACK_DEFAULT_NAME, then
// default_name, then "default".
func (c Config) Name() string {
	if v := strings.TrimSpace(os.Getenv(nameEnv)); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.DefaultName); v != "" {
		return v
	}
	return defaultName
}

// Active returns the tracking entry for the active name.
func (c Config) Active() (string, Tracking, bool) {
	name := c.Name()
	t, ok := c.XNAT[name]
	return name, t, ok
}

// Set stores a tracking entry under name.
func (c *Config) Set(name string, t Tracking) {
	if c.XNAT == nil {
		c.XNAT = map[string]Tracking{}
	}
	c.XNAT[name] = t
}

// Save writes the configuration and returns the file path.
func Save(dataset string, cfg Config) (string, error) {
	path := FilePath(dataset)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	bytes, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// WriteProvider writes the datalad provider file for name, replacing any
// earlier version, and returns its path.
func WriteProvider(dataset, name string, t Tracking) (string, error) {
	p := Provider{
		Name:               "xnat-" + name,
		URLPattern:         regexp.QuoteMeta(strings.TrimRight(t.URL, "/")) + "/.*",
		Credential:         t.CredentialName,
		AuthenticationType: "http_basic_auth",
		CredentialType:     "user_password",
	}

	file := ini.Empty()
	provider, err := file.NewSection("provider:" + p.Name)
	if err != nil {
		return "", fmt.Errorf("build provider: %w", err)
	}
	for _, kv := range [][2]string{
		{"url_re", p.URLPattern},
		{"credential", p.Credential},
		{"authentication_type", p.AuthenticationType},
	} {
		if _, err := provider.NewKey(kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("build provider: %w", err)
		}
	}
	credential, err := file.NewSection("credential:" + p.Credential)
	if err != nil {
		return "", fmt.Errorf("build provider: %w", err)
	}
	if _, err := credential.NewKey("type", p.CredentialType); err != nil {
		return "", fmt.Errorf("build provider: %w", err)
	}

	path := ProviderPath(dataset, name)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove provider: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create providers dir: %w", err)
	}
	if err := file.SaveTo(path); err != nil {
		return "", fmt.Errorf("write provider: %w", err)
	}
	return path, nil
}

// LoadProvider reads the provider file for name. ok is false when the file
// does not exist.
func LoadProvider(dataset, name string) (p Provider, ok bool, err error) {
	path := ProviderPath(dataset, name)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Provider{}, false, nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return Provider{}, false, fmt.Errorf("parse provider: %w", err)
	}
	section, err := file.GetSection("provider:xnat-" + name)
	if err != nil {
		return Provider{}, false, fmt.Errorf("parse provider %s: %w", path, err)
	}
	p = Provider{
		Name:               "xnat-" + name,
		URLPattern:         section.Key("url_re").String(),
		Credential:         section.Key("credential").String(),
		AuthenticationType: section.Key("authentication_type").String(),
	}
	if cred, err := file.GetSection("credential:" + p.Credential); err == nil {
		p.CredentialType = cred.Key("type").String()
	}
	return p, true, nil
}
