package params

import (
	"log/slog"
)

// Origin records where a resolved value came from.
type Origin string

const (
	OriginSource   Origin = "source"
	OriginDefault  Origin = "default"
	OriginFallback Origin = "fallback"
)

// Set is an immutable, ordered collection of resolved parameters.
type Set struct {
	names   []string
	values  map[string]Value
	origins map[string]Origin
}

// Resolve looks up every declared parameter in src. Missing values take
// the declared default; values that fail to parse, are out of range or
// outside the legal set are logged and replaced by the default. Each
// resolved value is echoed to logger.
func Resolve(src Source, defs []Param, logger *slog.Logger) Set {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	set := Set{
		names:   make([]string, 0, len(defs)),
		values:  make(map[string]Value, len(defs)),
		origins: make(map[string]Origin, len(defs)),
	}

	for _, p := range defs {
		def := p.Default
		if p.DefaultFrom != "" {
			if v, ok := set.values[p.DefaultFrom]; ok && v.Kind == p.Kind {
				def = v
			}
		}

		value, origin := def, OriginDefault

		if src != nil {
			if raw, ok := src.Lookup(p.Key); ok {
				parsed, err := p.parse(raw)
				if err != nil {
					origin = OriginFallback
					logger.Warn("invalid parameter value, using default",
						slog.String("param", p.Name),
						slog.String("key", p.Key),
						slog.String("value", raw),
						slog.String("default", def.String()),
						slog.String("error", err.Error()),
					)
				} else {
					value, origin = parsed, OriginSource
				}
			}
		}

		if _, dup := set.values[p.Name]; !dup {
			set.names = append(set.names, p.Name)
		}

		set.values[p.Name] = value
		set.origins[p.Name] = origin

		logger.Info("parameter resolved",
			slog.String("param", p.Name),
			slog.String("key", p.Key),
			slog.String("value", value.String()),
			slog.String("origin", string(origin)),
		)
	}

	return set
}

// Names returns parameter names in declaration order.
func (s Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of resolved parameters.
func (s Set) Len() int {
	return len(s.names)
}

// Get returns the resolved value for name.
func (s Set) Get(name string) (Value, bool) {
	v, ok := s.values[name]

	return v, ok
}

// Origin reports where the value for name came from.
func (s Set) Origin(name string) Origin {
	return s.origins[name]
}

// String returns the string or choice value for name, or "" if unknown.
func (s Set) String(name string) string {
	return s.values[name].Str
}

// Int returns the integer value for name, or 0 if unknown.
func (s Set) Int(name string) int64 {
	return s.values[name].Int
}

// Float returns the float value for name, or 0 if unknown.
func (s Set) Float(name string) float64 {
	return s.values[name].Float
}

// Map returns a fresh map of name to Go-typed value, suitable for echoing
// into a report.
func (s Set) Map() map[string]any {
	m := make(map[string]any, len(s.names))
	for _, name := range s.names {
		m[name] = s.values[name].Any()
	}

	return m
}
