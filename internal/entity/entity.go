package entity

import (
	"voicechanger/internal/ports"

	"github.com/google/uuid"
)

type VoiceEffect struct {
	ID        int
	Title     string
	Handle    ports.ElementHandle
	CatalogID uuid.UUID
}

type Catalog struct {
	ID      uuid.UUID
	Effects []VoiceEffect
}

func (c Catalog) Len() int {
	return len(c.Effects)
}

// Contains reports whether effect was produced by this discovery pass and still matches its slot.
func (c Catalog) Contains(effect VoiceEffect) bool {
	if effect.CatalogID != c.ID || effect.ID < 0 || effect.ID >= len(c.Effects) {
		return false
	}

	own := c.Effects[effect.ID]

	return own.Handle == effect.Handle && own.Title == effect.Title
}

type AudioSourceKind int

const (
	AudioSourceBytes AudioSourceKind = iota + 1
	AudioSourcePath
)

// AudioSource is either raw bytes or a local file path, fixed at construction.
type AudioSource struct {
	kind AudioSourceKind
	data []byte
	path string
}

func AudioFromBytes(data []byte) AudioSource {
	return AudioSource{kind: AudioSourceBytes, data: data}
}

func AudioFromPath(path string) AudioSource {
	return AudioSource{kind: AudioSourcePath, path: path}
}

func (a AudioSource) Kind() AudioSourceKind {
	return a.kind
}

func (a AudioSource) Bytes() []byte {
	return a.data
}

func (a AudioSource) Path() string {
	return a.path
}

func (a AudioSource) IsZero() bool {
	return a.kind == 0
}

type AudioPayload struct {
	Data          []byte
	SuggestedName string
}

type SessionState string

const (
	SessionStateCreated       SessionState = "created"
	SessionStateNavigated     SessionState = "navigated"
	SessionStateDiscovered    SessionState = "discovered"
	SessionStateAudioUploaded SessionState = "audio_uploaded"
	SessionStateEffectApplied SessionState = "effect_applied"
	SessionStateOutputReady   SessionState = "output_ready"
	SessionStateSucceeded     SessionState = "succeeded"
	SessionStateFailed        SessionState = "failed"
)

func (s SessionState) Terminal() bool {
	return s == SessionStateSucceeded || s == SessionStateFailed
}
