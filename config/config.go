package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/amalgan/trackman/redact"
)

type Config struct {
	Library    Library    `yaml:"library"`
	Log        Log        `yaml:"log"`
	Duplicates Duplicates `yaml:"duplicates"`
	Downloads  Downloads  `yaml:"downloads"`
	DAB        DAB        `yaml:"dab"`
	Spotify    Spotify    `yaml:"spotify"`
	Network    Network    `yaml:"network"`
}

func (c *Config) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("library", c.Library.ToDict()).
		Dict("log", c.Log.ToDict()).
		Dict("duplicates", c.Duplicates.ToDict()).
		Dict("downloads", c.Downloads.ToDict()).
		Dict("dab", c.DAB.ToDict()).
		Dict("spotify", c.Spotify.ToDict()).
		Dict("network", c.Network.ToDict())
}

func (c *Config) setDefaults() {
	c.Library.setDefaults()
	c.Log.setDefaults()
	c.Duplicates.setDefaults()
	c.Downloads.setDefaults()
	c.DAB.setDefaults()
	c.Spotify.setDefaults()
	c.Network.setDefaults()
}

func (c *Config) validate() error {
	if err := c.Library.validate(); nil != err {
		return fmt.Errorf("library config validation failed: %v", err)
	}

	if err := c.Log.validate(); nil != err {
		return fmt.Errorf("log config validation failed: %v", err)
	}

	if err := c.Duplicates.validate(); nil != err {
		return fmt.Errorf("duplicates config validation failed: %v", err)
	}

	if err := c.Downloads.validate(); nil != err {
		return fmt.Errorf("downloads config validation failed: %v", err)
	}

	if err := c.DAB.validate(); nil != err {
		return fmt.Errorf("dab config validation failed: %v", err)
	}

	if err := c.Spotify.validate(); nil != err {
		return fmt.Errorf("spotify config validation failed: %v", err)
	}

	if err := c.Network.validate(); nil != err {
		return fmt.Errorf("network config validation failed: %v", err)
	}

	return nil
}

type Library struct {
	Dir         string `yaml:"dir"`
	FailedLog   string `yaml:"failed_log"`
	ReviewCSV   string `yaml:"review_csv"`
	HistoryPath string `yaml:"history_path"`
}

func (c *Library) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("dir", c.Dir).
		Str("failed_log", c.FailedLog).
		Str("review_csv", c.ReviewCSV).
		Str("history_path", c.HistoryPath)
}

func (c *Library) setDefaults() {
	if c.Dir == "" {
		c.Dir = "./library"
	}

	if c.FailedLog == "" {
		c.FailedLog = "failed-downloads.txt"
	}

	if c.ReviewCSV == "" {
		c.ReviewCSV = "tracks-metadata-review.csv"
	}

	if c.HistoryPath == "" {
		c.HistoryPath = "history.db"
	}

	c.Dir = expandHome(c.Dir)
	c.FailedLog = expandHome(c.FailedLog)
	c.ReviewCSV = expandHome(c.ReviewCSV)
	c.HistoryPath = expandHome(c.HistoryPath)
}

func (c *Library) validate() error {
	if i, err := os.Stat(c.Dir); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("library dir does not exist")
		}

		return fmt.Errorf("failed to stat library dir: %v", err)
	} else if !i.IsDir() {
		return errors.New("library dir must be a directory")
	}

	return nil
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Log) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("level", c.Level).
		Str("format", c.Format)
}

func (c *Log) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "auto"
	}
}

func (c *Log) validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error", "fatal", "panic"}, c.Level) {
		return fmt.Errorf(
			"level must be one of: debug, info, warn, error, fatal, panic, got: %s",
			c.Level,
		)
	}

	if !slices.Contains([]string{"json", "pretty", "auto"}, c.Format) {
		return fmt.Errorf("format must be 'json', 'pretty', or 'auto', got: %s", c.Format)
	}

	return nil
}

type Duplicates struct {
	Handling string `yaml:"handling"`
}

func (c *Duplicates) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("handling", c.Handling)
}

func (c *Duplicates) setDefaults() {
	if c.Handling == "" {
		c.Handling = "interactive"
	}
}

func (c *Duplicates) validate() error {
	if !slices.Contains([]string{"interactive", "skip", "keep"}, c.Handling) {
		return fmt.Errorf("handling must be 'interactive', 'skip', or 'keep', got: %s", c.Handling)
	}

	return nil
}

type Downloads struct {
	DefaultFormat     string `yaml:"default_format"`
	PlaylistThreshold int    `yaml:"playlist_confirmation_threshold"`
}

func (c *Downloads) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("default_format", c.DefaultFormat).
		Int("playlist_confirmation_threshold", c.PlaylistThreshold)
}

func (c *Downloads) setDefaults() {
	if c.DefaultFormat == "" {
		c.DefaultFormat = "auto"
	}

	if c.PlaylistThreshold == 0 {
		c.PlaylistThreshold = 50
	}
}

func (c *Downloads) validate() error {
	if !slices.Contains([]string{"auto", "m4a", "mp3"}, c.DefaultFormat) {
		return fmt.Errorf("default_format must be 'auto', 'm4a', or 'mp3', got: %s", c.DefaultFormat)
	}

	if c.PlaylistThreshold < 0 {
		return errors.New("playlist_confirmation_threshold must be greater than 0")
	}

	return nil
}

type DAB struct {
	Endpoint string `yaml:"endpoint"`
	Email    string `yaml:"-"`
	Password string `yaml:"-"`
}

func (c *DAB) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("endpoint", c.Endpoint).
		Str("email", c.Email).
		Str("password", redact.String(c.Password))
}

func (c *DAB) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://dabmusic.xyz"
	}
}

func (c *DAB) validate() error {
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http(s) URL, got: %s", c.Endpoint)
	}

	return nil
}

// Enabled reports whether DAB credentials are available. Smart downloads are
// silently skipped when they are not.
func (c *DAB) Enabled() bool {
	return c.Email != "" && c.Password != ""
}

type Spotify struct {
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
}

func (c *Spotify) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("client_id", c.ClientID).
		Str("client_secret", redact.String(c.ClientSecret))
}

func (c *Spotify) setDefaults() {}

func (c *Spotify) validate() error {
	if (c.ClientID == "") != (c.ClientSecret == "") {
		return errors.New("client id and secret must be set together")
	}

	return nil
}

// Enabled reports whether Spotify API credentials are available. Without them
// ISRC lookups fall back to whatever metadata the source provides.
func (c *Spotify) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Network struct {
	SOCKS5Proxy string `yaml:"socks5_proxy"`
}

func (c *Network) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("socks5_proxy", c.SOCKS5Proxy)
}

func (c *Network) setDefaults() {}

func (c *Network) validate() error {
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if nil != err {
			return p
		}

		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}

	return p
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(lo.Ternary(len(filename) > 0, filename, "config.yaml"))
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); nil != err {
		return nil, fmt.Errorf("failed to parse config file %s: %v", filename, err)
	}

	conf.DAB.Email = os.Getenv("DAB_EMAIL")
	conf.DAB.Password = os.Getenv("DAB_PASSWORD")
	conf.Spotify.ClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	conf.Spotify.ClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	conf.setDefaults()

	if err := conf.validate(); nil != err {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return &conf, nil
}
