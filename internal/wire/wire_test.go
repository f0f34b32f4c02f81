package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rconfig/engine/internal/wire"
)

func TestBuildFetchRequest_IncludesCustomSignals(t *testing.T) {
	body, err := wire.BuildFetchRequest(wire.FetchRequestInfo{
		AppInstanceID: "iid-1",
		CustomSignals: map[string]any{"plan": "pro"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"app_instance_id":"iid-1"`)
	assert.Contains(t, string(body), `"plan":"pro"`)
}

func TestParseFetchResponse_UpdateWithEntries(t *testing.T) {
	body := []byte(`{
		"state": "UPDATE",
		"entries": {"greeting": "hi"},
		"experimentDescriptions": [{"experimentId": "exp1", "affectedParameterKey": ["greeting"]}],
		"personalizationMetadata": {"greeting": {"choiceId": "c1", "personalizationId": "p1", "armIndex": 2, "group": "treatment"}}
	}`)

	resp, err := wire.ParseFetchResponse(body)
	require.NoError(t, err)
	assert.True(t, resp.HasEntries)
	assert.Equal(t, "hi", resp.Entries["greeting"])
	require.Len(t, resp.ExperimentDescriptions, 1)
	assert.Equal(t, "exp1", resp.ExperimentDescriptions[0].ID)
	assert.Equal(t, []string{"greeting"}, resp.ExperimentDescriptions[0].AffectedParameterKeys)
	assert.Equal(t, "c1", resp.PersonalizationMetadata["greeting"].ChoiceID)
	assert.Equal(t, 2, resp.PersonalizationMetadata["greeting"].ArmIndex)
}

func TestParseFetchResponse_NoChangeHasNoEntries(t *testing.T) {
	resp, err := wire.ParseFetchResponse([]byte(`{"state": "NO_CHANGE"}`))
	require.NoError(t, err)
	assert.False(t, resp.HasEntries)
}

func TestExtractStreamEnvelope_ExtractsOutermostOnly(t *testing.T) {
	env, ok := wire.ExtractStreamEnvelope(`garbage{"a":1}{"b":2}trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}{"b":2}`, env)
}

func TestExtractStreamEnvelope_NoClosingBraceKeepsAccumulating(t *testing.T) {
	_, ok := wire.ExtractStreamEnvelope(`{"partial`)
	assert.False(t, ok)
}

func TestParseStreamMessage_FeatureDisabled(t *testing.T) {
	msg, err := wire.ParseStreamMessage(`{"featureDisabled": true}`)
	require.NoError(t, err)
	assert.True(t, msg.FeatureDisabled)
}

func TestParseStreamMessage_LatestTemplateVersion(t *testing.T) {
	msg, err := wire.ParseStreamMessage(`{"latestTemplateVersionNumber": 9}`)
	require.NoError(t, err)
	assert.True(t, msg.HasLatestTemplateVersion)
	assert.EqualValues(t, 9, msg.LatestTemplateVersionNumber)
}
