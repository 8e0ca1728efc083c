package params

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source provides raw string values by configuration key.
type Source interface {
	Lookup(key string) (string, bool)
}

// Map is a Source backed by an in-memory map.
type Map map[string]string

// Lookup implements Source.
func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]

	return v, ok
}

// Env builds a Source from a snapshot of environment entries in KEY=VALUE
// form, typically os.Environ() taken once at process start.
func Env(environ []string) Map {
	m := make(Map, len(environ))

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}

		m[key] = value
	}

	return m
}

// Layered consults each source in order and returns the first hit.
func Layered(sources ...Source) Source {
	return layered(sources)
}

type layered []Source

func (l layered) Lookup(key string) (string, bool) {
	for _, s := range l {
		if s == nil {
			continue
		}

		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}

	return "", false
}

// LoadFile reads a YAML document of scalar key/value pairs, e.g.
//
//	CONV_REPS: 100
//	FILTER_PADDING: VALID
func LoadFile(path string) (Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params file %s: %w", path, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse params file %s: %w", path, err)
	}

	m := make(Map, len(raw))

	for key, node := range raw {
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf(
				"params file %s: value of %s is not a scalar", path, key,
			)
		}

		m[key] = node.Value
	}

	return m, nil
}
