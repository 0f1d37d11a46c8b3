package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Source produces a flat set of keys. Keys returned by Load are lower-case
// and use "." for nesting.
type Source interface {
	Load() (map[string]any, error)
}

// reloadable is implemented by sources backed by a file that may be watched.
type reloadable interface {
	watchedFile() (path string, watch bool)
}

// EnvSource reads process environment variables. When Prefix is set only
// variables starting with it are read, and the prefix is stripped.
type EnvSource struct {
	Prefix string
}

func (s *EnvSource) Load() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range os.Environ() {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 || pair[0] == "" {
			continue
		}
		key := pair[0]
		if s.Prefix != "" {
			if !strings.HasPrefix(strings.ToUpper(key), strings.ToUpper(s.Prefix)) {
				continue
			}
			key = key[len(s.Prefix):]
		}
		if key == "" {
			continue
		}
		out[NormalizeKey(key)] = pair[1]
	}
	return out, nil
}

// JSONFileSource reads a JSON document. A missing optional file yields no
// keys; a missing required file or malformed JSON is an error.
type JSONFileSource struct {
	Path           string `validate:"required"`
	BasePath       string
	Optional       bool
	ReloadOnChange bool
}

func (s *JSONFileSource) fullPath() string {
	return resolvePath(s.BasePath, s.Path)
}

func (s *JSONFileSource) watchedFile() (string, bool) {
	return s.fullPath(), s.ReloadOnChange
}

func (s *JSONFileSource) Load() (map[string]any, error) {
	path := s.fullPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && s.Optional {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return flatten("", v.AllSettings()), nil
}

// DotEnvSource reads KEY=value pairs from a .env file without touching the
// process environment.
type DotEnvSource struct {
	Path     string `validate:"required"`
	BasePath string
	Optional bool
}

func (s *DotEnvSource) Load() (map[string]any, error) {
	path := resolvePath(s.BasePath, s.Path)
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) && s.Optional {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[NormalizeKey(k)] = v
	}
	return out, nil
}

// CommandLineSource reads --key=value, --key value and key=value arguments.
// Arguments that match none of these forms are ignored.
type CommandLineSource struct {
	Args []string
}

func (s *CommandLineSource) Load() (map[string]any, error) {
	out := make(map[string]any)
	for i := 0; i < len(s.Args); i++ {
		arg := s.Args[i]
		dashed := strings.HasPrefix(arg, "--") || strings.HasPrefix(arg, "/")
		trimmed := strings.TrimLeft(arg, "-/")

		if key, value, ok := strings.Cut(trimmed, "="); ok {
			if key != "" {
				out[NormalizeKey(key)] = value
			}
			continue
		}
		if dashed && trimmed != "" && i+1 < len(s.Args) && !strings.HasPrefix(s.Args[i+1], "-") {
			out[NormalizeKey(trimmed)] = s.Args[i+1]
			i++
		}
	}
	return out, nil
}

// MapSource serves an in-memory set of values. Nested maps are flattened.
type MapSource struct {
	Values map[string]any
}

func (s *MapSource) Load() (map[string]any, error) {
	return flatten("", s.Values), nil
}

// NormalizeKey converts an environment or command-line style key to the
// dotted lower-case form used for lookups: "Logging__Level" and
// "logging:level" both become "logging.level".
func NormalizeKey(key string) string {
	key = strings.ReplaceAll(key, "__", ".")
	key = strings.ReplaceAll(key, ":", ".")
	return strings.ToLower(key)
}

func resolvePath(base, path string) string {
	if base == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// flatten turns nested maps into dotted keys. Slices and scalars are leaves.
func flatten(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		switch nested := v.(type) {
		case map[string]any:
			for fk, fv := range flatten(key, nested) {
				out[fk] = fv
			}
		case map[any]any:
			conv := make(map[string]any, len(nested))
			for nk, nv := range nested {
				conv[fmt.Sprintf("%v", nk)] = nv
			}
			for fk, fv := range flatten(key, conv) {
				out[fk] = fv
			}
		default:
			out[key] = v
		}
	}
	return out
}
