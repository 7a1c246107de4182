package pathsync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetection(t *testing.T) {
	d, err := ParseDetection("content")
	require.NoError(t, err)
	assert.Equal(t, DetectContent, d)

	_, err = ParseDetection("hash")
	assert.Error(t, err)

	assert.Equal(t, "unknown_detection(9)", Detection(9).String())
}

func TestDetectionJSON(t *testing.T) {
	b, err := json.Marshal(DetectModTime)
	require.NoError(t, err)
	assert.JSONEq(t, `"mtime"`, string(b))

	var d Detection
	require.NoError(t, json.Unmarshal([]byte(`"content"`), &d))
	assert.Equal(t, DetectContent, d)
	assert.Error(t, json.Unmarshal([]byte(`3`), &d))
}

func TestActionRecordEnums(t *testing.T) {
	assert.Equal(t, "folder", EntityFolder.String())
	assert.Equal(t, "created", ReasonCreated.String())

	k, err := ParseEntityKind("file")
	require.NoError(t, err)
	assert.Equal(t, EntityFile, k)

	r, err := ParseReason("modified")
	require.NoError(t, err)
	assert.Equal(t, ReasonModified, r)

	b, err := json.Marshal(Copied{Entity: EntityFile, RelPath: "a", Reason: ReasonModified})
	require.NoError(t, err)
	assert.JSONEq(t, `{"entity":"file","path":"a","source":"","replica":"","reason":"modified"}`, string(b))
}
