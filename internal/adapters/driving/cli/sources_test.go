package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcesCmd_List(t *testing.T) {
	cleanup := setupCLITest(&mockOrchestrator{})
	defer cleanup()

	buf, err := execute("sources")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "test-source (configured)")
}

func TestSourcesDescribeCmd(t *testing.T) {
	cleanup := setupCLITest(&mockOrchestrator{})
	defer cleanup()

	buf, err := execute("sources", "describe", "test-source")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "test fixture source")
	assert.Contains(t, buf.String(), "delimited-text")
	assert.Contains(t, buf.String(), "daily")
}

func TestSourcesDescribeCmd_Unconfigured(t *testing.T) {
	cleanup := setupCLITest(&mockOrchestrator{})
	defer cleanup()

	_, err := execute("sources", "describe", "mystery")
	assert.ErrorContains(t, err, "not configured")
}
