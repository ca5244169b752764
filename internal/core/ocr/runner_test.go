package ocr

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_MissingTool(t *testing.T) {
	_, _, err := ExecRunner{}.Run(context.Background(), "docpipe-no-such-tool", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, err.Error(), "poppler-utils")
}

func TestExecRunner_CapturesOutputAndExitStatus(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out, errb, err := ExecRunner{}.Run(context.Background(), "sh", nil, "-c", "printf text; printf oops >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "text", string(out))
	assert.Equal(t, "oops", string(errb))

	var ee *exec.ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 3, ee.ExitCode())
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "ab...(truncated)", clip("abcdef", 2))
}
