package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesStdout(t *testing.T) {
	stdout, stderr, err := NewExec().Run(context.Background(), nil, "sh", "-c", "printf hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(stdout))
	assert.Empty(t, stderr)
}

func TestRunFeedsStdin(t *testing.T) {
	stdout, _, err := NewExec().Run(context.Background(), []byte("pass-through"), "cat")
	require.NoError(t, err)
	assert.Equal(t, "pass-through", string(stdout))
}

func TestRunNonZeroExit(t *testing.T) {
	_, _, err := NewExec().Run(context.Background(), nil, "sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)

	var cmdErr *Error
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "oops")
	assert.Contains(t, cmdErr.Error(), "exit code 3")
}

func TestRunMissingBinary(t *testing.T) {
	_, _, err := NewExec().Run(context.Background(), nil, "definitely-not-a-real-tool-4a1b")
	require.Error(t, err)

	var cmdErr *Error
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, -1, cmdErr.ExitCode)
	assert.Empty(t, cmdErr.Stderr)
}
