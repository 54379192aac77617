package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreKuzu   = "kuzu"
)

// DefaultTool is the attribute namespace safety properties are read from.
const DefaultTool = "rapx"

// ProjectConfig holds project-level settings loaded from upg.yml and the
// environment.
type ProjectConfig struct {
	// OutputDir is the base directory of the records. Empty means stdout.
	OutputDir string `yaml:"outputDir,omitempty"`
	// Continue asks the host to keep compiling dependent units.
	Continue bool `yaml:"continue,omitempty"`
	// SafetySpec is the path of the property table. Empty means the
	// built-in table.
	SafetySpec  string `yaml:"safetySpec,omitempty"`
	Tool        string `yaml:"tool,omitempty"`
	Store       string `yaml:"store,omitempty"`
	KuzuPath    string `yaml:"kuzuPath,omitempty"`
	CacheSize   int    `yaml:"cacheSize,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
	Verbose     bool   `yaml:"verbose,omitempty"`
	S3          S3     `yaml:"s3,omitempty"`
}

// S3 configures the object store sink. It is enabled when Endpoint is set.
type S3 struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	UseSSL    bool   `yaml:"useSSL,omitempty"`
}

// Enabled reports whether records should go to the object store.
func (s S3) Enabled() bool { return strings.TrimSpace(s.Endpoint) != "" }

// Load reads dir/.env into the process environment when present, then
// upg.yml or upg.yaml from dir, then applies UPG_* overrides. A missing
// config file yields the defaults, not an error.
func Load(dir string) (*ProjectConfig, error) {
	if envFile := filepath.Join(dir, ".env"); fileExists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &ProjectConfig{}
	for _, name := range []string{"upg.yml", "upg.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		break
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

func (c *ProjectConfig) applyEnv() error {
	setString(&c.OutputDir, "UPG_DIR")
	setString(&c.SafetySpec, "UPG_SAFETY_SPEC")
	setString(&c.Tool, "UPG_TOOL")
	setString(&c.Store, "UPG_STORE")
	setString(&c.KuzuPath, "UPG_KUZU_PATH")
	setString(&c.S3.Endpoint, "UPG_S3_ENDPOINT")
	setString(&c.S3.Region, "UPG_S3_REGION")
	setString(&c.S3.AccessKey, "UPG_S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "UPG_S3_SECRET_KEY")
	setString(&c.S3.Bucket, "UPG_S3_BUCKET")

	// Any value other than "0" asks to continue.
	if v, ok := os.LookupEnv("UPG_CONTINUE"); ok {
		c.Continue = strings.TrimSpace(v) != "0"
	}
	if raw := strings.TrimSpace(os.Getenv("UPG_S3_USE_SSL")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("UPG_S3_USE_SSL: %w", err)
		}
		c.S3.UseSSL = v
	}
	if raw := strings.TrimSpace(os.Getenv("UPG_CACHE_SIZE")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("UPG_CACHE_SIZE: %w", err)
		}
		c.CacheSize = n
	}
	return nil
}

func (c *ProjectConfig) defaults() {
	c.Tool = firstNonEmpty(c.Tool, DefaultTool)
	c.Store = firstNonEmpty(c.Store, StoreMemory)
	c.S3.Region = firstNonEmpty(c.S3.Region, "us-east-1")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
