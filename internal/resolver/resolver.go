// Package resolver implements the parameter resolution layer: typed
// accessors layering activated, defaults, and static values, with
// regex-driven boolean coercion and fire-and-forget listener fan-out.
package resolver

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/rcerrors"
	"github.com/rconfig/engine/internal/workerpool"
)

// trueRegex and falseRegex drive boolean coercion, matched
// case-insensitively.
var (
	trueRegex  = regexp.MustCompile(`(?i)^(1|true|t|yes|y|on)$`)
	falseRegex = regexp.MustCompile(`(?i)^(0|false|f|no|n|off|)$`)
)

// Source tags where a resolved Value came from.
type Source int

const (
	SourceStatic Source = iota
	SourceDefault
	SourceRemote
)

// Value is the opaque, source-tagged result of GetValue.
// A Static value ignores its raw string and returns the per-type static
// default; a non-static value coerces raw on demand.
type Value struct {
	raw    string
	source Source
}

func (v Value) Source() Source { return v.source }

// AsString returns the raw stored string, or "" for a static value.
func (v Value) AsString() string {
	if v.source == SourceStatic {
		return ""
	}
	return v.raw
}

// AsBoolean coerces via the regex rules. Unlike the typed getter, a
// failed coercion on a non-static value is an error rather than a silent
// fallback.
func (v Value) AsBoolean() (bool, error) {
	if v.source == SourceStatic {
		return false, nil
	}
	switch {
	case trueRegex.MatchString(v.raw):
		return true, nil
	case falseRegex.MatchString(v.raw):
		return false, nil
	default:
		return false, &rcerrors.ClientError{Message: "resolver: invalid boolean value " + strconv.Quote(v.raw)}
	}
}

// AsLong parses the value as an integer after trimming whitespace.
func (v Value) AsLong() (int64, error) {
	if v.source == SourceStatic {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v.raw), 10, 64)
	if err != nil {
		return 0, &rcerrors.ClientError{Message: "resolver: invalid long value " + strconv.Quote(v.raw)}
	}
	return n, nil
}

// AsDouble parses the value as an IEEE-754 double after trimming
// whitespace.
func (v Value) AsDouble() (float64, error) {
	if v.source == SourceStatic {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil {
		return 0, &rcerrors.ClientError{Message: "resolver: invalid double value " + strconv.Quote(v.raw)}
	}
	return f, nil
}

// AsByteArray returns the UTF-8 encoding of the raw string, or an empty
// slice for a static value.
func (v Value) AsByteArray() []byte {
	if v.source == SourceStatic {
		return []byte{}
	}
	return []byte(v.raw)
}

// Listener is notified whenever a lookup resolves via the activated
// cache.
type Listener func(key string, activated *container.Container)

// Resolver layers the activated, defaults, and static sources.
type Resolver struct {
	activated func() *container.Container
	defaults  func() *container.Container
	pool      *workerpool.Pool
	log       zerolog.Logger

	listeners []Listener
}

// New constructs a Resolver. activated and defaults are read lazily on
// every call, so the resolver always observes the cache's current state
// rather than a snapshot taken at construction.
func New(activated, defaults func() *container.Container, pool *workerpool.Pool, log zerolog.Logger) *Resolver {
	return &Resolver{activated: activated, defaults: defaults, pool: pool, log: log}
}

// AddListener registers l. Listener invocation happens fire-and-forget
// on the shared worker pool; a panicking listener is recovered and
// logged, never propagated to the caller.
func (r *Resolver) AddListener(l Listener) {
	r.listeners = append(r.listeners, l)
}

func (r *Resolver) notify(key string) {
	act := r.activated()
	if act == nil {
		return
	}
	for _, l := range r.listeners {
		l := l
		r.pool.Submit(func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error().Interface("panic", rec).Str("key", key).Msg("resolver: listener panicked")
				}
			}()
			l(key, act)
		})
	}
}

func (r *Resolver) lookup(key string) (string, Source, bool) {
	if act := r.activated(); act != nil {
		if v, ok := act.Configs()[key]; ok {
			r.notify(key)
			return v, SourceRemote, true
		}
	}
	if def := r.defaults(); def != nil {
		if v, ok := def.Configs()[key]; ok {
			return v, SourceDefault, true
		}
	}
	return "", SourceStatic, false
}

// GetString resolves activated, then defaults, then "".
func (r *Resolver) GetString(key string) string {
	v, _, ok := r.lookup(key)
	if !ok {
		return ""
	}
	return v
}

// GetBoolean resolves with fall-through coercion: a non-matching string
// falls through to defaults; ultimate fallback is false.
func (r *Resolver) GetBoolean(key string) bool {
	if act := r.activated(); act != nil {
		if v, ok := act.Configs()[key]; ok {
			r.notify(key)
			switch {
			case trueRegex.MatchString(v):
				return true
			case falseRegex.MatchString(v):
				return false
			}
		}
	}
	if def := r.defaults(); def != nil {
		if v, ok := def.Configs()[key]; ok {
			switch {
			case trueRegex.MatchString(v):
				return true
			case falseRegex.MatchString(v):
				return false
			}
		}
	}
	return false
}

// GetLong resolves with fall-through coercion.
func (r *Resolver) GetLong(key string) int64 {
	if act := r.activated(); act != nil {
		if v, ok := act.Configs()[key]; ok {
			r.notify(key)
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	if def := r.defaults(); def != nil {
		if v, ok := def.Configs()[key]; ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

// GetDouble resolves with fall-through coercion.
func (r *Resolver) GetDouble(key string) float64 {
	if act := r.activated(); act != nil {
		if v, ok := act.Configs()[key]; ok {
			r.notify(key)
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	if def := r.defaults(); def != nil {
		if v, ok := def.Configs()[key]; ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// GetByteArray returns the UTF-8 bytes of the resolved string, or an
// empty slice.
func (r *Resolver) GetByteArray(key string) []byte {
	v, _, ok := r.lookup(key)
	if !ok {
		return []byte{}
	}
	return []byte(v)
}

// GetValue returns the opaque, source-tagged value for key.
func (r *Resolver) GetValue(key string) Value {
	raw, source, ok := r.lookup(key)
	if !ok {
		return Value{source: SourceStatic}
	}
	return Value{raw: raw, source: source}
}

// GetKeysByPrefix returns the lexicographically ordered, deduplicated
// union of matching keys from activated and defaults.
func (r *Resolver) GetKeysByPrefix(prefix string) []string {
	var activatedKeys, defaultKeys []string
	if act := r.activated(); act != nil {
		activatedKeys = lo.Keys(act.Configs())
	}
	if def := r.defaults(); def != nil {
		defaultKeys = lo.Keys(def.Configs())
	}

	union := lo.Uniq(append(activatedKeys, defaultKeys...))
	matching := lo.Filter(union, func(k string, _ int) bool {
		return strings.HasPrefix(k, prefix)
	})
	sort.Strings(matching)
	return matching
}

// GetAll returns the union of keys across activated and defaults, each
// resolved via GetValue.
func (r *Resolver) GetAll() map[string]Value {
	keys := r.GetKeysByPrefix("")
	out := make(map[string]Value, len(keys))
	for _, k := range keys {
		out[k] = r.GetValue(k)
	}
	return out
}
