package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type handle struct{ name string }

func (h *handle) Stale() bool { return false }

func TestCatalogContains(t *testing.T) {
	robot, alien := &handle{"robot"}, &handle{"alien"}
	catalog := Catalog{ID: uuid.New()}
	catalog.Effects = []VoiceEffect{
		{ID: 0, Title: "Robot", Handle: robot, CatalogID: catalog.ID},
		{ID: 1, Title: "Alien", Handle: alien, CatalogID: catalog.ID},
	}

	assert.Equal(t, 2, catalog.Len())
	assert.True(t, catalog.Contains(catalog.Effects[1]))

	other := catalog.Effects[1]
	other.CatalogID = uuid.New()
	assert.False(t, catalog.Contains(other))

	outOfRange := catalog.Effects[1]
	outOfRange.ID = 2
	assert.False(t, catalog.Contains(outOfRange))

	swapped := catalog.Effects[0]
	swapped.Handle = alien
	assert.False(t, catalog.Contains(swapped))

	renamed := catalog.Effects[0]
	renamed.Title = "Alien"
	assert.False(t, catalog.Contains(renamed))

	assert.False(t, catalog.Contains(VoiceEffect{}))
}

func TestAudioSource(t *testing.T) {
	var zero AudioSource
	assert.True(t, zero.IsZero())

	fromBytes := AudioFromBytes([]byte{1, 2})
	assert.False(t, fromBytes.IsZero())
	assert.Equal(t, AudioSourceBytes, fromBytes.Kind())
	assert.Equal(t, []byte{1, 2}, fromBytes.Bytes())
	assert.Empty(t, fromBytes.Path())

	fromPath := AudioFromPath("sample.mp3")
	assert.Equal(t, AudioSourcePath, fromPath.Kind())
	assert.Equal(t, "sample.mp3", fromPath.Path())
	assert.Nil(t, fromPath.Bytes())
}

func TestSessionStateTerminal(t *testing.T) {
	assert.True(t, SessionStateSucceeded.Terminal())
	assert.True(t, SessionStateFailed.Terminal())
	assert.False(t, SessionStateDiscovered.Terminal())
}
