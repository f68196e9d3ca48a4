package params

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/saplingerr"
)

func reset() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}

func TestGetBeforeLoad(t *testing.T) {
	reset()
	assert.False(t, Loaded())
	_, err := Get()
	assert.True(t, errors.Is(err, saplingerr.ErrParametersNotLoaded))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))

	blob := []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 1, 2, 3}
	_, _, err = Decode(blob)
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))

	reset()
	err = Load([]byte{1}, []byte{2})
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))
	assert.False(t, Loaded(), "a failed load leaves nothing installed")
}

func TestSetupLoadFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	spend, output, err := Setup()
	require.NoError(t, err)

	dir := t.TempDir()
	sp := filepath.Join(dir, "spend.params")
	op := filepath.Join(dir, "output.params")
	require.NoError(t, SaveFiles(sp, op, spend, output))

	reset()
	require.NoError(t, LoadFiles(sp, op))
	assert.True(t, Loaded())

	set, err := Get()
	require.NoError(t, err)
	assert.NotNil(t, set.Spend.PK)
	assert.NotNil(t, set.Output.VK)

	// already loaded: the second call is a no-op
	require.NoError(t, Load(nil, nil))
	again, err := Get()
	require.NoError(t, err)
	assert.Same(t, set, again)

	reset()
	require.NoError(t, SetupOrLoadFiles(sp, op), "existing files are loaded")
	assert.True(t, Loaded())
}
