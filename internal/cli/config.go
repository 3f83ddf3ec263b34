package cli

// This file resolves the promotion configuration. Precedence, highest first:
// command-line flags, environment (INPUT_<KEY> as set by GitHub Actions, then
// SWR_<KEY>), the YAML config file, built-in defaults.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"swr-promote/internal/swr"
)

// DefaultConfigFile is read when present and no --config flag is given.
const DefaultConfigFile = ".swr-promote.yaml"

// Configuration keys. They double as action input names.
const (
	keyProjectID    = "project_id"
	keyAccessKey    = "ak"
	keySecretKey    = "sk"
	keyRegion       = "region"
	keyNamespace    = "ns"
	keyRepository   = "repository"
	keyTag          = "tag"
	keyEngine       = "engine"
	keyPublic       = "public"
	keyDockerConfig = "docker_config"
)

// requiredKeys are validated in this order so error messages are stable.
var requiredKeys = []string{keyProjectID, keyAccessKey, keySecretKey, keyRegion, keyNamespace, keyRepository, keyTag}

// Config is the resolved, immutable input of a promotion.
type Config struct {
	ProjectID  string
	AccessKey  string
	SecretKey  string
	Region     string
	Namespace  string
	Repository string
	Tag        string

	Engine       string
	Public       bool
	DockerConfig string
}

// Target returns the normalized destination of the promotion.
func (c *Config) Target() swr.Target {
	return swr.NewTarget(c.Region, c.Namespace, c.Repository, c.Tag)
}

// SourceImage returns the un-normalized source reference.
func (c *Config) SourceImage() string {
	return swr.SourceImage(c.Repository, c.Tag)
}

// Credentials returns the SWR API signing keys.
func (c *Config) Credentials() swr.Credentials {
	return swr.Credentials{AccessKey: c.AccessKey, SecretKey: c.SecretKey, ProjectID: c.ProjectID}
}

// logFields describes c without secrets.
func (c *Config) logFields() []zap.Field {
	return []zap.Field{
		zap.String("project_id", c.ProjectID),
		zap.String("region", c.Region),
		zap.String("namespace", c.Namespace),
		zap.String("repository", c.Repository),
		zap.String("tag", c.Tag),
		zap.String("engine", c.Engine),
		zap.Bool("public", c.Public),
	}
}

// fileConfig mirrors the YAML config file. Public is a pointer so an explicit
// false is kept.
type fileConfig struct {
	ProjectID    string `yaml:"project_id,omitempty"`
	AccessKey    string `yaml:"ak,omitempty"`
	SecretKey    string `yaml:"sk,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Namespace    string `yaml:"ns,omitempty"`
	Repository   string `yaml:"repository,omitempty"`
	Tag          string `yaml:"tag,omitempty"`
	Engine       string `yaml:"engine,omitempty"`
	Public       *bool  `yaml:"public,omitempty"`
	DockerConfig string `yaml:"docker_config,omitempty"`
}

func (f *fileConfig) values() map[string]any {
	values := map[string]any{}
	for key, value := range map[string]string{
		keyProjectID:    f.ProjectID,
		keyAccessKey:    f.AccessKey,
		keySecretKey:    f.SecretKey,
		keyRegion:       f.Region,
		keyNamespace:    f.Namespace,
		keyRepository:   f.Repository,
		keyTag:          f.Tag,
		keyEngine:       f.Engine,
		keyDockerConfig: f.DockerConfig,
	} {
		if value != "" {
			values[key] = value
		}
	}
	if f.Public != nil {
		values[keyPublic] = *f.Public
	}
	return values
}

// addConfigFlags registers the configuration flags on cmd.
func addConfigFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("config", "", "Path to YAML config file (default "+DefaultConfigFile+" if present)")
	flags.String("project-id", "", "Huawei Cloud project ID")
	flags.String("ak", "", "Access key")
	flags.String("sk", "", "Secret key")
	flags.String("region", "", "Region, e.g. ap-southeast-1")
	flags.String("ns", "", "SWR namespace (organization)")
	flags.String("repository", "", "Source repository; \"/\" becomes \"_\" in SWR")
	flags.String("tag", "", "Image tag")
	flags.String("engine", EngineCLI, "Container engine: cli, api or crane")
	flags.Bool("public", true, "Create missing repositories as public")
	flags.String("docker-config", "", "Credential file removed after promotion (default ~/.docker/config.json)")
}

// flagForKey maps configuration keys to flag names.
var flagForKey = map[string]string{
	keyProjectID:    "project-id",
	keyAccessKey:    "ak",
	keySecretKey:    "sk",
	keyRegion:       "region",
	keyNamespace:    "ns",
	keyRepository:   "repository",
	keyTag:          "tag",
	keyEngine:       "engine",
	keyPublic:       "public",
	keyDockerConfig: "docker-config",
}

// loadConfig resolves the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	path, _ := cmd.Flags().GetString("config")
	fileCfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		for key, value := range fileCfg.values() {
			v.SetDefault(key, value)
		}
	}

	for key, flagName := range flagForKey {
		upper := strings.ToUpper(key)
		if err := v.BindEnv(key, "INPUT_"+upper, "SWR_"+upper); err != nil {
			return nil, wrapWithSentinel(ErrBindConfigFailed, err, fmt.Sprintf("bind env for %s: %v", key, err))
		}
		if flag := cmd.Flags().Lookup(flagName); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, wrapWithSentinel(ErrBindConfigFailed, err, fmt.Sprintf("bind flag --%s: %v", flagName, err))
			}
		}
	}

	cfg := &Config{
		ProjectID:    strings.TrimSpace(v.GetString(keyProjectID)),
		AccessKey:    strings.TrimSpace(v.GetString(keyAccessKey)),
		SecretKey:    strings.TrimSpace(v.GetString(keySecretKey)),
		Region:       strings.TrimSpace(v.GetString(keyRegion)),
		Namespace:    strings.TrimSpace(v.GetString(keyNamespace)),
		Repository:   strings.TrimSpace(v.GetString(keyRepository)),
		Tag:          strings.TrimSpace(v.GetString(keyTag)),
		Engine:       strings.TrimSpace(v.GetString(keyEngine)),
		Public:       v.GetBool(keyPublic),
		DockerConfig: strings.TrimSpace(v.GetString(keyDockerConfig)),
	}
	if cfg.Engine == "" {
		cfg.Engine = EngineCLI
	}
	if cfg.DockerConfig == "" {
		cfg.DockerConfig, err = defaultDockerConfigPath()
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Validate checks required fields and rejects control characters.
func (c *Config) Validate() error {
	values := map[string]string{
		keyProjectID:  c.ProjectID,
		keyAccessKey:  c.AccessKey,
		keySecretKey:  c.SecretKey,
		keyRegion:     c.Region,
		keyNamespace:  c.Namespace,
		keyRepository: c.Repository,
		keyTag:        c.Tag,
	}
	for _, key := range requiredKeys {
		value := values[key]
		if value == "" {
			return newWithSentinel(ErrFieldRequired, fmt.Sprintf("%s is required (flag, env INPUT_%s/SWR_%s, or config file)", key, strings.ToUpper(key), strings.ToUpper(key)))
		}
		if strings.ContainsAny(value, "\r\n\t") {
			return newWithSentinel(ErrControlCharsNotAllowed, fmt.Sprintf("%s must not contain control characters", key))
		}
	}
	switch c.Engine {
	case EngineCLI, EngineAPI, EngineCrane:
	default:
		return newWithSentinel(ErrUnknownEngine, fmt.Sprintf("unknown engine %q (use %s|%s|%s)", c.Engine, EngineCLI, EngineAPI, EngineCrane))
	}
	return nil
}

// loadConfigFile reads path, or DefaultConfigFile when path is empty.
// A missing default file is not an error; a missing explicit file is.
func loadConfigFile(path string) (*fileConfig, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	// #nosec G304 -- path is chosen by the operator running the action.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil, nil
		}
		return nil, wrapWithSentinelAndContext(ErrReadConfigFileFailed, err, fmt.Sprintf("failed to read config file: %v", err), map[string]any{"path": path})
	}

	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, wrapWithSentinelAndContext(ErrUnmarshalConfigFileFailed, err, fmt.Sprintf("failed to unmarshal config file: %v", err), map[string]any{"path": path})
	}
	return &cfg, nil
}

// defaultDockerConfigPath follows the docker CLI: $DOCKER_CONFIG/config.json,
// else ~/.docker/config.json.
func defaultDockerConfigPath() (string, error) {
	if dir := os.Getenv("DOCKER_CONFIG"); dir != "" {
		return filepath.Join(dir, "config.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", wrapWithSentinel(ErrGetHomeDirectoryFailed, err, fmt.Sprintf("failed to get home directory: %v", err))
	}
	return filepath.Join(home, ".docker", "config.json"), nil
}
