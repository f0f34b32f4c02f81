package diff_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/diff"
)

func TestChanged_SymmetryOnUnchanged(t *testing.T) {
	c := container.NewBuilder().WithConfigs(map[string]string{"a": "1", "b": "2"}).Build()
	assert.Empty(t, diff.Changed(c, c))
}

func TestChanged_ActivationDiffSeedScenario(t *testing.T) {
	a := container.NewBuilder().WithConfigs(map[string]string{"a": "1", "b": "2"}).Build()
	b := container.NewBuilder().WithConfigs(map[string]string{"a": "1", "b": "3", "c": "4"}).Build()

	changed := diff.Changed(a, b)
	assert.Equal(t, map[string]struct{}{"b": {}, "c": {}}, changed)
}

func TestChanged_KeyPresentOnOnlyOneSide(t *testing.T) {
	a := container.NewBuilder().WithConfigs(map[string]string{"a": "1"}).Build()
	b := container.NewBuilder().WithConfigs(map[string]string{}).Build()

	changed := diff.Changed(a, b)
	assert.Equal(t, map[string]struct{}{"a": {}}, changed)
}

func TestChanged_EqualValuesDifferingPersonalization(t *testing.T) {
	a := container.NewBuilder().
		WithConfigs(map[string]string{"a": "1"}).
		WithPersonalizationMetadata(map[string]container.PersonalizationMetadata{
			"a": {ChoiceID: "c1"},
		}).
		Build()
	b := container.NewBuilder().
		WithConfigs(map[string]string{"a": "1"}).
		WithPersonalizationMetadata(map[string]container.PersonalizationMetadata{
			"a": {ChoiceID: "c2"},
		}).
		Build()

	changed := diff.Changed(a, b)
	assert.Equal(t, map[string]struct{}{"a": {}}, changed)
}

func TestChanged_ExperimentAddedMarksAffectedKeys(t *testing.T) {
	a := container.NewBuilder().WithConfigs(map[string]string{"x": "1", "y": "1"}).Build()
	b := container.NewBuilder().
		WithConfigs(map[string]string{"x": "1", "y": "1"}).
		WithExperimentDescriptions([]container.ExperimentDescriptor{
			{ID: "exp1", AffectedParameterKeys: []string{"x"}},
		}).
		Build()

	changed := diff.Changed(a, b)
	assert.Equal(t, map[string]struct{}{"x": {}}, changed)
}

func TestChanged_ExperimentMetadataChangeMarksUnionOfAffectedKeys(t *testing.T) {
	a := container.NewBuilder().
		WithConfigs(map[string]string{"x": "1", "y": "1"}).
		WithExperimentDescriptions([]container.ExperimentDescriptor{
			{ID: "exp1", AffectedParameterKeys: []string{"x"}, Metadata: json.RawMessage(`{"v":1}`)},
		}).
		Build()
	b := container.NewBuilder().
		WithConfigs(map[string]string{"x": "1", "y": "1"}).
		WithExperimentDescriptions([]container.ExperimentDescriptor{
			{ID: "exp1", AffectedParameterKeys: []string{"y"}, Metadata: json.RawMessage(`{"v":2}`)},
		}).
		Build()

	changed := diff.Changed(a, b)
	assert.Equal(t, map[string]struct{}{"x": {}, "y": {}}, changed)
}

func TestChanged_ExperimentAffectedKeySetDeltaForOtherwiseEqualExperiment(t *testing.T) {
	meta := json.RawMessage(`{"v":1}`)
	a := container.NewBuilder().
		WithConfigs(map[string]string{"x": "1", "y": "1", "z": "1"}).
		WithExperimentDescriptions([]container.ExperimentDescriptor{
			{ID: "exp1", AffectedParameterKeys: []string{"x", "y"}, Metadata: meta},
		}).
		Build()
	b := container.NewBuilder().
		WithConfigs(map[string]string{"x": "1", "y": "1", "z": "1"}).
		WithExperimentDescriptions([]container.ExperimentDescriptor{
			{ID: "exp1", AffectedParameterKeys: []string{"x", "z"}, Metadata: meta},
		}).
		Build()

	changed := diff.Changed(a, b)
	assert.Equal(t, map[string]struct{}{"y": {}, "z": {}}, changed)
}

func TestChangedValues_ReportsBothSides(t *testing.T) {
	a := container.NewBuilder().WithConfigs(map[string]string{"a": "1"}).Build()
	b := container.NewBuilder().WithConfigs(map[string]string{"a": "2"}).Build()

	values := diff.ChangedValues(a, b)
	assert.Equal(t, [2]string{"1", "2"}, values["a"])
}
