package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	type payload struct {
		Kind  string    `json:"kind"`
		Value []float64 `json:"value"`
	}

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"kind":"minmax","value":[1,2]}`), 0o644))
	var p payload
	require.NoError(t, LoadJSON("scaler", good, &p))
	assert.Equal(t, payload{Kind: "minmax", Value: []float64{1, 2}}, p)

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"kind":"minmax","extra":true}`), 0o644))
	err := LoadJSON("scaler", unknown, &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra")

	err = LoadJSON("scaler", filepath.Join(dir, "missing.json"), &p)
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "scaler", notFound.Kind)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
