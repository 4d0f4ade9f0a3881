package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Venues      []VenueConfig     `toml:"venues" validate:"required,min=1,dive"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and catalog options.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri" validate:"omitempty,url"`
	Market       string `toml:"market" validate:"omitempty,len=2"`
	OwnerID      string `toml:"owner_id"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string   `toml:"host"`
	Port          int      `toml:"port" validate:"min=1,max=65535"`
	TriggerLimit  int      `toml:"trigger_limit" validate:"gte=0"`
	TriggerWindow Duration `toml:"trigger_window" validate:"gte=0"`
}

// SyncConfig holds pacing, cache and playlist settings for a sync run.
type SyncConfig struct {
	Schedule          string   `toml:"schedule" validate:"required"`
	ArtistDelay       Duration `toml:"artist_delay" validate:"gte=0"`
	VenueDelay        Duration `toml:"venue_delay" validate:"gte=0"`
	RequestTimeout    Duration `toml:"request_timeout" validate:"gt=0"`
	ScrapeTimeout     Duration `toml:"scrape_timeout" validate:"gt=0"`
	FreshnessWindow   Duration `toml:"freshness_window" validate:"gt=0"`
	RetentionMonths   int      `toml:"retention_months" validate:"gte=0"`
	SearchLimit       int      `toml:"search_limit" validate:"min=1,max=50"`
	TopTracks         int      `toml:"top_tracks" validate:"min=1,max=10"`
	CompositeTrackCap int      `toml:"composite_track_cap" validate:"min=1"`
	PlaylistPublic    bool     `toml:"playlist_public"`
	LockPath          string   `toml:"lock_path"`
	UserAgent         string   `toml:"user_agent"`
}

// VenueConfig describes one venue and where its calendar is scraped from.
type VenueConfig struct {
	ID             string `toml:"id" json:"id" validate:"required"`
	Name           string `toml:"name" json:"name" validate:"required"`
	ScrapeURL      string `toml:"scrape_url" json:"scrape_url" validate:"required,url"`
	ArtistSelector string `toml:"artist_selector" json:"artist_selector,omitempty"`
	DateSelector   string `toml:"date_selector" json:"date_selector,omitempty"`
}

// Duration wraps [time.Duration] so config values can be written as "200ms" or "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// RetentionCutoff returns the instant before which a cached artist is past the retention window.
func (s SyncConfig) RetentionCutoff(now time.Time) time.Time {
	return now.AddDate(0, -s.RetentionMonths, 0)
}

// Venue looks up a configured venue by id.
func (c *Config) Venue(id string) (VenueConfig, error) {
	for _, v := range c.Venues {
		if v.ID == id {
			return v, nil
		}
	}
	return VenueConfig{}, fmt.Errorf("%w: %s", ErrVenueNotFound, id)
}

// Validate checks field constraints and that venue ids are unique.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(Duration); ok {
			return d.Duration
		}
		return nil
	}, Duration{})

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(c.Venues))
	for _, venue := range c.Venues {
		if seen[venue.ID] {
			return fmt.Errorf("%w: duplicate venue id %s", ErrInvalidConfig, venue.ID)
		}
		seen[venue.ID] = true
	}
	return nil
}

// HasSpotifyCredentials reports whether client credentials are present and not the example placeholders.
func (c *Config) HasSpotifyCredentials() bool {
	sp := c.Credentials.Spotify
	return sp.ClientID != "" && sp.ClientSecret != "" && sp.ClientID != "your_spotify_client_id"
}

// ApplyEnv loads the given .env files (missing files are ignored) and overrides config values
// from UPCOMING_* environment variables.
func (c *Config) ApplyEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	overrides := map[string]*string{
		"UPCOMING_SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"UPCOMING_SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"UPCOMING_SPOTIFY_REDIRECT_URI":  &c.Credentials.Spotify.RedirectURI,
		"UPCOMING_SPOTIFY_OWNER_ID":      &c.Credentials.Spotify.OwnerID,
		"UPCOMING_DATABASE_PATH":         &c.Database.Path,
		"UPCOMING_SERVER_HOST":           &c.Server.Host,
		"UPCOMING_SYNC_SCHEDULE":         &c.Sync.Schedule,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("UPCOMING_SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: UPCOMING_SERVER_PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults, except venues: a file that lists venues replaces the default set.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	venues := config.Venues
	config.Venues = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(config.Venues) == 0 {
		config.Venues = venues
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
