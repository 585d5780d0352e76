package envutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, WriteDotEnv(path, map[string]string{
		"ESTATECRM_TEST_ADDR": ":3000",
		"ESTATECRM_TEST_NAME": "demo admin",
	}, false))

	err := WriteDotEnv(path, map[string]string{"X": "y"}, false)
	assert.ErrorContains(t, err, "already exists")

	t.Setenv("ESTATECRM_TEST_NAME", "from env")
	os.Unsetenv("ESTATECRM_TEST_ADDR")
	t.Cleanup(func() { os.Unsetenv("ESTATECRM_TEST_ADDR") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, ":3000", os.Getenv("ESTATECRM_TEST_ADDR"))
	assert.Equal(t, "from env", os.Getenv("ESTATECRM_TEST_NAME"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestTypedLookups(t *testing.T) {
	t.Setenv("ESTATECRM_TEST_TIMEOUT", "3s")
	t.Setenv("ESTATECRM_TEST_DB", "2")
	t.Setenv("ESTATECRM_TEST_FLAG", "yes")
	t.Setenv("ESTATECRM_TEST_BAD", "soon")

	assert.Equal(t, 3*time.Second, Duration("ESTATECRM_TEST_TIMEOUT", time.Second))
	assert.Equal(t, time.Second, Duration("ESTATECRM_TEST_BAD", time.Second))
	assert.Equal(t, 2, Int("ESTATECRM_TEST_DB", 0))
	assert.True(t, Bool("ESTATECRM_TEST_FLAG", false))
	assert.Equal(t, "fallback", OrDefault("ESTATECRM_TEST_UNSET", "fallback"))
}
