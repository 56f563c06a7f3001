package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFileEnv names an optional TOML file applied underneath the
// environment.
const ConfigFileEnv = "HARBOR_CONSOLE_CONFIG"

type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	DB       DBConfig
	Auth     AuthConfig
	Grid     GridConfig
	Transfer TransferConfig
	Storage  StorageConfig
	CORS     CORSConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type BackendConfig struct {
	URL      string
	Username string
	Password string
	Token    string
}

type DBConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret         string
	JWTExpiry         time.Duration
	AdminUser         string
	AdminPassword     string
	AdminPasswordHash string
}

type GridConfig struct {
	PollInterval time.Duration
	RefreshDelay time.Duration
	PageLength   int
	// Saved view state older than StateCutoff is discarded on load.
	StateCutoff time.Time
}

type TransferConfig struct {
	ChunkSize   int64
	SettleDelay time.Duration
	HaltOnError bool
}

type StorageConfig struct {
	Path            string
	MaxSize         int64
	Retention       time.Duration
	CleanupInterval time.Duration
}

type CORSConfig struct {
	AllowedOrigins string
}

type LogConfig struct {
	Level slog.Level
}

// Load reads the configuration from the environment, falling back to the
// file named by HARBOR_CONSOLE_CONFIG and then to defaults.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv(ConfigFileEnv); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}
	return src.load()
}

type source struct {
	file map[string]string
	errs []string
}

func (s *source) value(env, key, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (s *source) duration(env, key, fallback string) time.Duration {
	raw := s.value(env, key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		s.errs = append(s.errs, fmt.Sprintf("invalid %s: %v", env, err))
	}
	return d
}

func (s *source) integer(env, key, fallback string) int64 {
	raw := s.value(env, key, fallback)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.errs = append(s.errs, fmt.Sprintf("invalid %s: %v", env, err))
	}
	return n
}

func (s *source) boolean(env, key, fallback string) bool {
	raw := s.value(env, key, fallback)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		s.errs = append(s.errs, fmt.Sprintf("invalid %s: %v", env, err))
	}
	return b
}

func (s *source) load() (*Config, error) {
	cutoffRaw := s.value("HARBOR_CONSOLE_GRID_STATE_CUTOFF", "grid.state_cutoff", "2024-07-31T08:43:48Z")
	cutoff, err := time.Parse(time.RFC3339, cutoffRaw)
	if err != nil {
		s.errs = append(s.errs, fmt.Sprintf("invalid HARBOR_CONSOLE_GRID_STATE_CUTOFF: %v", err))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s.value("HARBOR_CONSOLE_LOG_LEVEL", "log.level", "info"))); err != nil {
		s.errs = append(s.errs, fmt.Sprintf("invalid HARBOR_CONSOLE_LOG_LEVEL: %v", err))
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: s.value("HARBOR_CONSOLE_HOST", "server.host", "127.0.0.1"),
			Port: s.value("HARBOR_CONSOLE_PORT", "server.port", "8090"),
		},
		Backend: BackendConfig{
			URL:      s.value("HARBOR_CONSOLE_BACKEND_URL", "backend.url", "http://localhost:60053"),
			Username: s.value("HARBOR_CONSOLE_BACKEND_USER", "backend.username", ""),
			Password: s.value("HARBOR_CONSOLE_BACKEND_PASSWORD", "backend.password", ""),
			Token:    s.value("HARBOR_CONSOLE_BACKEND_TOKEN", "backend.token", ""),
		},
		DB: DBConfig{
			Enabled:  s.boolean("HARBOR_CONSOLE_DB_ENABLED", "database.enabled", "false"),
			Host:     s.value("HARBOR_CONSOLE_DB_HOST", "database.host", "localhost"),
			Port:     s.value("HARBOR_CONSOLE_DB_PORT", "database.port", "5432"),
			Name:     s.value("HARBOR_CONSOLE_DB_NAME", "database.name", "harbor_console"),
			User:     s.value("HARBOR_CONSOLE_DB_USER", "database.user", "harbor"),
			Password: s.value("HARBOR_CONSOLE_DB_PASSWORD", "database.password", "harbor"),
			SSLMode:  s.value("HARBOR_CONSOLE_DB_SSLMODE", "database.sslmode", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:         s.value("HARBOR_CONSOLE_JWT_SECRET", "auth.jwt_secret", "change-me-in-production"),
			JWTExpiry:         s.duration("HARBOR_CONSOLE_JWT_EXPIRY", "auth.jwt_expiry", "24h"),
			AdminUser:         s.value("HARBOR_CONSOLE_ADMIN_USER", "auth.admin_user", "admin"),
			AdminPassword:     s.value("HARBOR_CONSOLE_ADMIN_PASSWORD", "auth.admin_password", "admin"),
			AdminPasswordHash: s.value("HARBOR_CONSOLE_ADMIN_PASSWORD_HASH", "auth.admin_password_hash", ""),
		},
		Grid: GridConfig{
			PollInterval: s.duration("HARBOR_CONSOLE_GRID_POLL_INTERVAL", "grid.poll_interval", "10s"),
			RefreshDelay: s.duration("HARBOR_CONSOLE_GRID_REFRESH_DELAY", "grid.refresh_delay", "50ms"),
			PageLength:   int(s.integer("HARBOR_CONSOLE_GRID_PAGE_LENGTH", "grid.page_length", "10")),
			StateCutoff:  cutoff,
		},
		Transfer: TransferConfig{
			ChunkSize:   s.integer("HARBOR_CONSOLE_TRANSFER_CHUNK_SIZE", "transfer.chunk_size", "10485760"),
			SettleDelay: s.duration("HARBOR_CONSOLE_TRANSFER_SETTLE_DELAY", "transfer.settle_delay", "1s"),
			HaltOnError: s.boolean("HARBOR_CONSOLE_TRANSFER_HALT_ON_ERROR", "transfer.halt_on_error", "false"),
		},
		Storage: StorageConfig{
			Path:            s.value("HARBOR_CONSOLE_STAGING_PATH", "storage.path", "/var/lib/harbor-console/staging"),
			MaxSize:         s.integer("HARBOR_CONSOLE_STAGING_MAX_SIZE", "storage.max_size", "2147483648"),
			Retention:       s.duration("HARBOR_CONSOLE_STAGING_RETENTION", "storage.retention", "24h"),
			CleanupInterval: s.duration("HARBOR_CONSOLE_STAGING_CLEANUP_INTERVAL", "storage.cleanup_interval", "1h"),
		},
		CORS: CORSConfig{
			AllowedOrigins: s.value("HARBOR_CONSOLE_CORS_ORIGINS", "cors.allowed_origins", "http://localhost:3000"),
		},
		Log: LogConfig{Level: level},
	}

	if cfg.Transfer.ChunkSize <= 0 {
		s.errs = append(s.errs, "HARBOR_CONSOLE_TRANSFER_CHUNK_SIZE must be positive")
	}
	if cfg.Grid.PageLength <= 0 {
		s.errs = append(s.errs, "HARBOR_CONSOLE_GRID_PAGE_LENGTH must be positive")
	}
	if len(s.errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(s.errs, "; "))
	}
	return cfg, nil
}

// readFile flattens a TOML document into "section.key" strings.
func readFile(path string) (map[string]string, error) {
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	out := map[string]string{}
	flatten("", raw, out)
	return out, nil
}

func flatten(prefix string, in map[string]interface{}, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]interface{}:
			flatten(key, x, out)
		case time.Time:
			out[key] = x.Format(time.RFC3339)
		default:
			out[key] = fmt.Sprint(x)
		}
	}
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
