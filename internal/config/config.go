// Package config loads the service configuration from the environment.
//
// LOADING ORDER:
//  1. A ".env" file in the working directory, if one exists (godotenv).
//     Variables already set in the process environment win over the file.
//  2. The process environment.
//  3. Defaults for anything still unset.
//
// The result is validated once with go-playground/validator, so the rest of
// the program can trust every field.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Each field maps to one environment
// variable, named in the env tag.
type Config struct {
	Port             int           `env:"PORT" validate:"gte=1,lte=65535"`
	DBPath           string        `env:"DB_PATH" validate:"required"`
	JWTSecret        string        `env:"JWT_SECRET" validate:"required,min=16"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" validate:"gt=0"`
	BcryptCost       int           `env:"BCRYPT_COST" validate:"gte=4,lte=31"`
	CORSOrigins      []string      `env:"CORS_ORIGINS" validate:"dive,required"`
	SeedFile         string        `env:"SEED_FILE"`
	AllowAdminSignup bool          `env:"ALLOW_ADMIN_SIGNUP"`
	LogLevel         string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat        string        `env:"LOG_FORMAT" validate:"oneof=text json"`
}

// Defaults returns a Config with every optional field set. JWTSecret has no
// default and must always be supplied.
func Defaults() Config {
	return Config{
		Port:       8080,
		DBPath:     "data/comparathor.db",
		TokenTTL:   24 * time.Hour,
		BcryptCost: 12,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env (if present) and the environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source. Load passes
// os.LookupEnv; tests pass a map.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	c := Defaults()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []error
	if v, ok := get("PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %q is not an integer", v))
		}
		c.Port = n
	}
	if v, ok := get("DB_PATH"); ok {
		c.DBPath = v
	}
	if v, ok := get("JWT_SECRET"); ok {
		c.JWTSecret = v
	}
	if v, ok := get("TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOKEN_TTL: %w", err))
		}
		c.TokenTTL = d
	}
	if v, ok := get("BCRYPT_COST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BCRYPT_COST: %q is not an integer", v))
		}
		c.BcryptCost = n
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := get("SEED_FILE"); ok {
		c.SeedFile = v
	}
	if v, ok := get("ALLOW_ADMIN_SIGNUP"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ALLOW_ADMIN_SIGNUP: %q is not a boolean", v))
		}
		c.AllowAdminSignup = b
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.LogFormat = strings.ToLower(v)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every field against its rule and reports the offending
// environment variables by name.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", envName(fe.StructField()), fe.Tag()))
	}
	return fmt.Errorf("config: invalid settings: %s", strings.Join(msgs, "; "))
}

// Addr is the listen address for net/http.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger builds the slog logger described by LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envName maps a struct field (possibly "CORSOrigins[0]") back to its
// environment variable.
func envName(field string) string {
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	if f, ok := reflect.TypeOf(Config{}).FieldByName(field); ok {
		if tag := f.Tag.Get("env"); tag != "" {
			return tag
		}
	}
	return field
}
