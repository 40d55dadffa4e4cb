package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

func TestStoreRoundTripsThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "nowplaying.yaml")

	s, err := Open(path)
	require.NoError(t, err)

	_, ok := s.CurrentStation()
	assert.False(t, ok)
	assert.Empty(t, s.Favorites())

	fip := metadata.Station{ID: "u1", Name: "FIP", URL: "http://icecast.radiofrance.fr/fip-hifi.aac"}
	nts := metadata.Station{ID: "u2", Name: "NTS 1", URL: "https://stream-relay-geo.ntslive.net/stream"}

	require.NoError(t, s.SetCurrentStation(fip))
	require.NoError(t, s.SetFavorites("", []metadata.Station{fip, nts}))

	reopened, err := Open(path)
	require.NoError(t, err)

	cur, ok := reopened.CurrentStation()
	require.True(t, ok)
	assert.Equal(t, fip, cur)
	assert.Equal(t, []metadata.Station{fip, nts}, reopened.Favorites())

	st := reopened.State()
	assert.Equal(t, DefaultListID, st.CurrentListID)
}

func TestStoreSelectsList(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)

	a := metadata.Station{Name: "A", URL: "http://a"}
	b := metadata.Station{Name: "B", URL: "http://b"}

	require.NoError(t, s.SetFavorites("jazz", []metadata.Station{a}))
	require.NoError(t, s.SetFavorites("ambient", []metadata.Station{b}))
	assert.Equal(t, []metadata.Station{b}, s.Favorites())

	// The returned state is a copy.
	st := s.State()
	st.StationLists["ambient"][0].Name = "changed"
	assert.Equal(t, "B", s.Favorites()[0].Name)
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("currentStation: [not, a, station"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
}
