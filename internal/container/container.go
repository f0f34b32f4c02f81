// Package container defines the immutable parameter snapshot shared by the
// cache, fetch handler, resolver and diff layers.
package container

import (
	"encoding/json"
	"time"
)

// ExperimentDescriptor binds an experiment id to the parameter keys it
// affects, plus opaque server metadata the engine never interprets.
type ExperimentDescriptor struct {
	ID                    string          `msgpack:"id"`
	AffectedParameterKeys []string        `msgpack:"affected_keys,omitempty"`
	Metadata              json.RawMessage `msgpack:"metadata,omitempty"`
}

// PersonalizationMetadata describes a single (parameter, user) arm
// assignment minted by the backend's personalization engine.
type PersonalizationMetadata struct {
	ChoiceID          string `msgpack:"choice_id"`
	PersonalizationID string `msgpack:"personalization_id"`
	ArmIndex          int    `msgpack:"arm_index"`
	Group             string `msgpack:"group"`
}

// Container is an immutable snapshot of parameter values plus the metadata
// needed to resolve, diff and log them. Containers are never mutated after
// construction; all "modifications" go through Builder and produce a new
// value.
type Container struct {
	configs                 map[string]string
	fetchTime               time.Time
	experimentDescriptions  []ExperimentDescriptor
	personalizationMetadata map[string]PersonalizationMetadata
	templateVersion         int64
}

// Empty is the zero-value container: no configs, defaults fetch time,
// unknown template version. It is distinct from "no container" (nil),
// which the store and cache represent as a typed nil.
var Empty = Container{}

// Configs returns the parameter key/value map. The returned map must not be
// mutated by the caller; it is shared with the Container's internal state.
func (c *Container) Configs() map[string]string {
	if c == nil || c.configs == nil {
		return map[string]string{}
	}
	return c.configs
}

// Get returns the raw string value for key and whether it was present.
func (c *Container) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.configs[key]
	return v, ok
}

// FetchTime returns when this container was produced. The zero time
// represents "defaults" per the data model's fetch-timestamp convention.
func (c *Container) FetchTime() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.fetchTime
}

// IsDefaults reports whether this container represents the defaults
// source (fetch time is the zero value).
func (c *Container) IsDefaults() bool {
	return c.FetchTime().IsZero()
}

// TemplateVersion returns the server-side template version, or 0 if unknown.
func (c *Container) TemplateVersion() int64 {
	if c == nil {
		return 0
	}
	return c.templateVersion
}

// ExperimentDescriptions returns the ordered experiment descriptors.
func (c *Container) ExperimentDescriptions() []ExperimentDescriptor {
	if c == nil {
		return nil
	}
	return c.experimentDescriptions
}

// Personalization returns the personalization metadata for key, if any.
func (c *Container) Personalization(key string) (PersonalizationMetadata, bool) {
	if c == nil || c.personalizationMetadata == nil {
		return PersonalizationMetadata{}, false
	}
	p, ok := c.personalizationMetadata[key]
	return p, ok
}

// PersonalizationMap returns the full key -> personalization-metadata map.
// The returned map must not be mutated.
func (c *Container) PersonalizationMap() map[string]PersonalizationMetadata {
	if c == nil {
		return nil
	}
	return c.personalizationMetadata
}

// Equal reports whether two containers carry the same configs, template
// version, experiment descriptions and personalization metadata. FetchTime
// is intentionally excluded: two fetches that both return the unchanged
// container should compare equal for cache-coherence purposes.
func (c *Container) Equal(other *Container) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.templateVersion != other.templateVersion {
		return false
	}
	if len(c.configs) != len(other.configs) {
		return false
	}
	for k, v := range c.configs {
		if ov, ok := other.configs[k]; !ok || ov != v {
			return false
		}
	}
	if len(c.personalizationMetadata) != len(other.personalizationMetadata) {
		return false
	}
	for k, v := range c.personalizationMetadata {
		if ov, ok := other.personalizationMetadata[k]; !ok || ov != v {
			return false
		}
	}
	if len(c.experimentDescriptions) != len(other.experimentDescriptions) {
		return false
	}
	for i, e := range c.experimentDescriptions {
		oe := other.experimentDescriptions[i]
		if e.ID != oe.ID || string(e.Metadata) != string(oe.Metadata) {
			return false
		}
		if len(e.AffectedParameterKeys) != len(oe.AffectedParameterKeys) {
			return false
		}
		for i2, k := range e.AffectedParameterKeys {
			if oe.AffectedParameterKeys[i2] != k {
				return false
			}
		}
	}
	return true
}

// Builder constructs an immutable Container by value.
type Builder struct {
	c Container
}

// NewBuilder starts a new Builder with an empty, zero-valued container.
func NewBuilder() *Builder {
	return &Builder{c: Container{configs: map[string]string{}}}
}

// WithConfigs sets the parameter key/value map. The provided map is copied.
func (b *Builder) WithConfigs(configs map[string]string) *Builder {
	copied := make(map[string]string, len(configs))
	for k, v := range configs {
		copied[k] = v
	}
	b.c.configs = copied
	return b
}

// WithFetchTime sets the fetch timestamp.
func (b *Builder) WithFetchTime(t time.Time) *Builder {
	b.c.fetchTime = t
	return b
}

// WithTemplateVersion sets the template version.
func (b *Builder) WithTemplateVersion(v int64) *Builder {
	b.c.templateVersion = v
	return b
}

// WithExperimentDescriptions sets the ordered experiment descriptors. The
// provided slice is copied.
func (b *Builder) WithExperimentDescriptions(ed []ExperimentDescriptor) *Builder {
	copied := make([]ExperimentDescriptor, len(ed))
	copy(copied, ed)
	b.c.experimentDescriptions = copied
	return b
}

// WithPersonalizationMetadata sets the per-key personalization metadata map.
// The provided map is copied.
func (b *Builder) WithPersonalizationMetadata(pm map[string]PersonalizationMetadata) *Builder {
	copied := make(map[string]PersonalizationMetadata, len(pm))
	for k, v := range pm {
		copied[k] = v
	}
	b.c.personalizationMetadata = copied
	return b
}

// Build returns the constructed, immutable Container.
func (b *Builder) Build() *Container {
	out := b.c
	return &out
}
