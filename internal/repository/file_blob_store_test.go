package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBlobStoreRoundTrip(t *testing.T) {
	s, err := NewFileBlobStore(t.TempDir())
	require.NoError(t, err)

	assert.False(t, s.Exists("AAPL_model.json"))
	_, err = s.Get("AAPL_model.json")
	assert.Error(t, err)

	require.NoError(t, s.Put("AAPL_model.json", []byte(`{"trees":[]}`)))
	assert.True(t, s.Exists("AAPL_model.json"))

	got, err := s.Get("AAPL_model.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"trees":[]}`), got)

	// overwrite replaces content
	require.NoError(t, s.Put("AAPL_model.json", []byte(`v2`)))
	got, err = s.Get("AAPL_model.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`v2`), got)
}
