package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

func testConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		Version: 1,
		Providers: []*config.Provider{
			{
				ID: "p1", APIMode: config.APIModeOpenAIResponses, OwnedBy: "openai",
				BaseURLs: []string{"https://up1.test"}, APIKey: "k",
				Models: []*config.Model{{Name: "echo", UpstreamModel: "echo-upstream"}, {Name: "shared"}},
			},
			{
				ID: "p2", APIMode: config.APIModeGemini, OwnedBy: "google",
				BaseURLs: []string{"https://up2.test"}, APIKey: "k",
				Models: []*config.Model{{Name: "gemini-1.5-pro"}, {Name: "shared"}},
			},
		},
	}
}

func TestResolveUniqueModel(t *testing.T) {
	r, err := Resolve(testConfig(), "echo", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", r.Provider.ID)
	assert.Equal(t, "echo-upstream", r.UpstreamModel())
}

func TestResolveProviderPrefix(t *testing.T) {
	r, err := Resolve(testConfig(), "p2.shared", "")
	require.NoError(t, err)
	assert.Equal(t, "p2", r.Provider.ID)

	// ownedBy works as a prefix when unique, case-insensitively.
	r, err = Resolve(testConfig(), "Google.shared", "")
	require.NoError(t, err)
	assert.Equal(t, "p2", r.Provider.ID)
}

func TestResolveDottedModelFallsThrough(t *testing.T) {
	// "gemini-1" is not a provider, so the dot belongs to the model name.
	r, err := Resolve(testConfig(), "gemini-1.5-pro", "")
	require.NoError(t, err)
	assert.Equal(t, "p2", r.Provider.ID)
	assert.Equal(t, "gemini-1.5-pro", r.Model.Name)
}

func TestResolveHint(t *testing.T) {
	r, err := Resolve(testConfig(), "shared", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", r.Provider.ID)

	_, err = Resolve(testConfig(), "echo", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown provider")
}

func TestResolveAmbiguous(t *testing.T) {
	_, err := Resolve(testConfig(), "shared", "")
	require.Error(t, err)
	assert.Equal(t, "Ambiguous model: shared", err.Error())
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve(testConfig(), "missing", "")
	require.Error(t, err)
	assert.Equal(t, "Unknown model: missing", err.Error())
}

func TestResolveRejectsBadIDs(t *testing.T) {
	_, err := Resolve(testConfig(), "", "")
	assert.Error(t, err)
	_, err = Resolve(testConfig(), "a:b", "")
	assert.Error(t, err)
}

func TestOpenAIModelList(t *testing.T) {
	list := OpenAIModelList(testConfig())
	var ids []string
	for _, entry := range list {
		ids = append(ids, entry["id"].(string))
	}
	// Unique names stay bare; duplicates get the provider prefix. Sorted.
	assert.Equal(t, []string{"echo", "gemini-1.5-pro", "p1.shared", "p2.shared"}, ids)
}
