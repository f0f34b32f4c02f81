// Package diff computes the set of parameter keys that changed between
// two container snapshots.
package diff

import (
	"github.com/samber/lo"

	"github.com/rconfig/engine/internal/container"
)

// Changed returns the set of parameter keys that differ between a and b:
// value presence/equality, differing personalization metadata on an
// otherwise-equal key, and experiment membership/metadata changes
// reflected through affected-parameter keys.
func Changed(a, b *container.Container) map[string]struct{} {
	out := make(map[string]struct{})

	diffConfigs(a, b, out)
	diffPersonalization(a, b, out)
	diffExperiments(a, b, out)

	return out
}

// ChangedValues is a convenience view over Changed: the keys that differ,
// together with each side's resolved string value (empty string if absent
// on that side), for callers that want both "what changed" and "to what"
// without re-querying the resolver per key.
func ChangedValues(a, b *container.Container) map[string][2]string {
	keys := Changed(a, b)
	out := make(map[string][2]string, len(keys))
	for k := range keys {
		av, _ := a.Get(k)
		bv, _ := b.Get(k)
		out[k] = [2]string{av, bv}
	}
	return out
}

func diffConfigs(a, b *container.Container, out map[string]struct{}) {
	ac, bc := a.Configs(), b.Configs()
	for _, k := range lo.Uniq(append(lo.Keys(ac), lo.Keys(bc)...)) {
		av, aok := ac[k]
		bv, bok := bc[k]
		if aok != bok || av != bv {
			out[k] = struct{}{}
		}
	}
}

func diffPersonalization(a, b *container.Container, out map[string]struct{}) {
	ap, bp := a.PersonalizationMap(), b.PersonalizationMap()
	for _, k := range lo.Uniq(append(lo.Keys(ap), lo.Keys(bp)...)) {
		av, aok := ap[k]
		bv, bok := bp[k]
		if aok != bok || av != bv {
			out[k] = struct{}{}
		}
	}
}

func diffExperiments(a, b *container.Container, out map[string]struct{}) {
	ae := experimentsByID(a)
	be := experimentsByID(b)

	for _, id := range lo.Uniq(append(lo.Keys(ae), lo.Keys(be)...)) {
		ad, aok := ae[id]
		bd, bok := be[id]

		switch {
		case aok && !bok:
			markKeys(out, ad.AffectedParameterKeys)
		case !aok && bok:
			markKeys(out, bd.AffectedParameterKeys)
		case string(ad.Metadata) != string(bd.Metadata):
			markKeys(out, ad.AffectedParameterKeys)
			markKeys(out, bd.AffectedParameterKeys)
		default:
			aSet := lo.SliceToMap(ad.AffectedParameterKeys, func(k string) (string, struct{}) { return k, struct{}{} })
			bSet := lo.SliceToMap(bd.AffectedParameterKeys, func(k string) (string, struct{}) { return k, struct{}{} })
			for k := range aSet {
				if _, ok := bSet[k]; !ok {
					out[k] = struct{}{}
				}
			}
			for k := range bSet {
				if _, ok := aSet[k]; !ok {
					out[k] = struct{}{}
				}
			}
		}
	}
}

func experimentsByID(c *container.Container) map[string]container.ExperimentDescriptor {
	descs := c.ExperimentDescriptions()
	out := make(map[string]container.ExperimentDescriptor, len(descs))
	for _, d := range descs {
		out[d.ID] = d
	}
	return out
}

func markKeys(out map[string]struct{}, keys []string) {
	for _, k := range keys {
		out[k] = struct{}{}
	}
}
