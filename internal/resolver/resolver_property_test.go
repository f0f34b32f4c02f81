package resolver_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/resolver"
	"github.com/rconfig/engine/internal/workerpool"
)

func newPropResolver(t *testing.T, activated, defaults map[string]string) *resolver.Resolver {
	t.Helper()
	pool := workerpool.New(1)
	t.Cleanup(pool.Stop)

	var act, def *container.Container
	if activated != nil {
		act = container.NewBuilder().WithConfigs(activated).Build()
	}
	if defaults != nil {
		def = container.NewBuilder().WithConfigs(defaults).Build()
	}
	return resolver.New(
		func() *container.Container { return act },
		func() *container.Container { return def },
		pool, zerolog.Nop(),
	)
}

func TestResolver_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	trueForms := []string{"1", "true", "t", "yes", "y", "on"}
	falseForms := []string{"0", "false", "f", "no", "n", "off", ""}

	// Property 1: every casing of a truthy form coerces to true, every
	// casing of a falsy form to false.
	properties.Property("boolean coercion is total over the regex forms", prop.ForAll(
		func(idx int, upper bool) bool {
			all := append(append([]string{}, trueForms...), falseForms...)
			form := all[idx%len(all)]
			if upper {
				form = strings.ToUpper(form)
			}
			r := newPropResolver(t, map[string]string{"flag": form}, nil)
			got := r.GetBoolean("flag")
			want := idx%len(all) < len(trueForms)
			return got == want
		},
		gen.IntRange(0, 12),
		gen.Bool(),
	))

	// Property 2: a non-matching string falls through to defaults.
	properties.Property("non-boolean strings fall through to defaults", prop.ForAll(
		func(junk string) bool {
			r := newPropResolver(t,
				map[string]string{"flag": "certainly-not-a-bool-" + junk},
				map[string]string{"flag": "true"},
			)
			return r.GetBoolean("flag")
		},
		gen.AlphaString(),
	))

	// Property 3: GetKeysByPrefix returns ascending, duplicate-free keys
	// that all carry the prefix.
	properties.Property("prefix listing is sorted and deduplicated", prop.ForAll(
		func(keys []string, prefix string) bool {
			activated := make(map[string]string, len(keys))
			defaults := make(map[string]string, len(keys))
			for i, k := range keys {
				if i%2 == 0 {
					activated[k] = "a"
				}
				defaults[k] = "d"
			}
			r := newPropResolver(t, activated, defaults)

			got := r.GetKeysByPrefix(prefix)
			if !sort.StringsAreSorted(got) {
				return false
			}
			seen := make(map[string]struct{}, len(got))
			for _, k := range got {
				if _, dup := seen[k]; dup {
					return false
				}
				seen[k] = struct{}{}
				if !strings.HasPrefix(k, prefix) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
