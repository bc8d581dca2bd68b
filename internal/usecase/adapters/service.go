package adapters

import (
	"context"
	"math/rand/v2"
	"voicechanger/internal/entity"

	"github.com/google/uuid"
)

type VoiceSession interface {
	ID() uuid.UUID
	TargetURL() string
	State() entity.SessionState
	Effects() []entity.VoiceEffect
	Effect(id int) (entity.VoiceEffect, error)
	EffectByTitle(title string) (entity.VoiceEffect, error)
	RandomEffect(r *rand.Rand) entity.VoiceEffect
	ApplyEffect(ctx context.Context, source entity.AudioSource, effect entity.VoiceEffect) (entity.AudioPayload, error)
	Reset(ctx context.Context) error
	Release()
}

type SessionService interface {
	Open(ctx context.Context) (VoiceSession, error)
}

type StorageService interface {
	ReadAudio(path string) ([]byte, error)
	WriteAudio(data []byte, name string) (string, error)
}
