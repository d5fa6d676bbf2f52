package secrets

import (
	"fmt"
	"maps"
	"os"
	"strings"
)

// Static returns a Loader that always yields key=value. An empty value yields
// nothing.
func Static(key, value string) Loader {
	return func() (map[string]string, error) {
		if value == "" {
			return map[string]string{}, nil
		}
		return map[string]string{key: value}, nil
	}
}

// File returns a Loader that reads key from path, trimming surrounding
// whitespace. An empty path yields nothing.
func File(key, path string) Loader {
	return func() (map[string]string, error) {
		if path == "" {
			return map[string]string{}, nil
		}
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator configuration
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		v := strings.TrimSpace(string(data))
		if v == "" {
			return map[string]string{}, nil
		}
		return map[string]string{key: v}, nil
	}
}

// Chain merges loaders in order; later loaders override earlier ones. Any
// loader error fails the whole chain.
func Chain(loaders ...Loader) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string)
		for _, l := range loaders {
			vals, err := l()
			if err != nil {
				return nil, err
			}
			maps.Copy(out, vals)
		}
		return out, nil
	}
}
