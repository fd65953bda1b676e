package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveToken(t *testing.T) {
	t.Setenv("ACCESS_TOKEN", " from-env ")

	tok, err := resolveToken("from-flag")
	require.NoError(t, err)
	assert.Equal(t, "from-flag", tok)

	tok, err = resolveToken("  ")
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)
}

func TestSetupRejectsBadActivityID(t *testing.T) {
	for _, arg := range []string{"abc", "0", "-3"} {
		_, err := setup(arg)
		assert.ErrorContains(t, err, "invalid activity id", arg)
	}
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0s", formatSeconds(0))
	assert.Equal(t, "1m30s", formatSeconds(90))
	assert.Equal(t, "1h0m5s", formatSeconds(3605))
}
