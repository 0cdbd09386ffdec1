package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityTuple(t *testing.T) {
	a := Alert{Node: NodeA, Source: "volume_usage", Class: "VolumeUsage", Key: "/vol1"}
	b := Alert{Node: NodeA, Source: "volume_usage", Class: "VolumeUsage", Key: "/vol1"}
	assert.Equal(t, a.Identity(), b.Identity())

	b.Node = NodeB
	assert.NotEqual(t, a.Identity(), b.Identity())

	b = a
	b.Key = "/vol2"
	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestDefaultKeyDeterministic(t *testing.T) {
	args1 := map[string]interface{}{"volume": "/vol1", "used_percent": "85.0"}
	args2 := map[string]interface{}{"used_percent": "85.0", "volume": "/vol1"}

	// encoding/json sorts keys, so insertion order does not matter.
	assert.Equal(t, DefaultKey(args1), DefaultKey(args2))
	assert.NotEqual(t, DefaultKey(args1), DefaultKey(map[string]interface{}{"volume": "/vol2"}))
}

func TestFormatText(t *testing.T) {
	out := FormatText("Volume {volume} usage is {used_percent}%", map[string]interface{}{
		"volume":       "/vol1",
		"used_percent": 85,
	})
	assert.Equal(t, "Volume /vol1 usage is 85%", out)

	// Unknown placeholders stay as written.
	out = FormatText("Disk {disk} failed", map[string]interface{}{"volume": "/vol1"})
	assert.Equal(t, "Disk {disk} failed", out)
}

func TestLevelJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(LevelCritical)
	require.NoError(t, err)
	assert.Equal(t, `"CRITICAL"`, string(data))

	var level Level
	require.NoError(t, json.Unmarshal([]byte(`"WARNING"`), &level))
	assert.Equal(t, LevelWarning, level)

	assert.Error(t, json.Unmarshal([]byte(`"LOUD"`), &level))
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelCritical > LevelError)
	assert.True(t, LevelError > LevelWarning)
	assert.True(t, LevelWarning > LevelNotice)
	assert.True(t, LevelNotice > LevelInfo)
}

func TestValidPolicy(t *testing.T) {
	for _, name := range PolicyNames {
		assert.True(t, ValidPolicy(name))
	}
	assert.False(t, ValidPolicy("SOMETIMES"))
	assert.False(t, ValidPolicy(""))
}

func TestNodeLabel(t *testing.T) {
	assert.Equal(t, "Controller A", NodeLabel(NodeA))
	assert.Equal(t, "Controller B", NodeLabel(NodeB))
	assert.Equal(t, "X", NodeLabel("X"))
}
