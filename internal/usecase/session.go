package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"voicechanger/internal/bridge"
	"voicechanger/internal/discovery"
	"voicechanger/internal/entity"
	"voicechanger/internal/locator"
	"voicechanger/internal/ports"
	"voicechanger/internal/storage"
	"voicechanger/pkg/apperr"
	"voicechanger/pkg/logg"
	"voicechanger/pkg/poll"
	"voicechanger/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Session drives one page of the target site through
// navigated → discovered → audio_uploaded → effect_applied → output_ready → succeeded|failed.
// It owns its driver exclusively and is not safe for concurrent use.
type Session struct {
	id         uuid.UUID
	targetURL  string
	driver     ports.Driver
	locators   locator.Catalog
	discoverer *discovery.Discoverer
	bridge     *bridge.Bridge
	storage    *storage.Storage
	uploadWait poll.Options
	outputWait poll.Options
	logger     *zap.Logger
	tracer     trace.Tracer
	catalog    entity.Catalog
	state      entity.SessionState
	release    func()
	released   bool
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) TargetURL() string {
	return s.targetURL
}

func (s *Session) State() entity.SessionState {
	return s.state
}

func (s *Session) Effects() []entity.VoiceEffect {
	return append([]entity.VoiceEffect(nil), s.catalog.Effects...)
}

func (s *Session) Effect(id int) (entity.VoiceEffect, error) {
	if id < 0 || id >= s.catalog.Len() {
		return entity.VoiceEffect{}, apperr.NotFoundError("Effect", fmt.Errorf("no effect with id %d", id))
	}

	return s.catalog.Effects[id], nil
}

func (s *Session) EffectByTitle(title string) (entity.VoiceEffect, error) {
	for _, effect := range s.catalog.Effects {
		if strings.EqualFold(effect.Title, strings.TrimSpace(title)) {
			return effect, nil
		}
	}

	return entity.VoiceEffect{}, apperr.NotFoundError("EffectByTitle", fmt.Errorf("no effect titled %q", title))
}

// RandomEffect picks uniformly from the catalog; r may be nil.
// It returns the zero effect only when a failed Reset left the catalog empty.
func (s *Session) RandomEffect(r *rand.Rand) entity.VoiceEffect {
	n := s.catalog.Len()
	if n == 0 {
		return entity.VoiceEffect{}
	}

	if r != nil {
		return s.catalog.Effects[r.IntN(n)]
	}

	return s.catalog.Effects[rand.IntN(n)]
}

// Release hands the driver back to the opener. The browser itself stays with its owner.
func (s *Session) Release() {
	if s.released {
		return
	}

	s.released = true
	if s.release != nil {
		s.release()
	}
}

// Reset navigates again and rebuilds the catalog. Effects and handles from before become unusable.
func (s *Session) Reset(ctx context.Context) (err error) {
	const op = "Reset"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if s.released {
		return apperr.WrapErrorWithReason(op, apperr.CodeInvalidState, "session_released")
	}

	s.state = entity.SessionStateCreated
	s.catalog = entity.Catalog{}

	return s.start(ctx)
}

func (s *Session) start(ctx context.Context) (err error) {
	const op = "start"

	defer func() {
		if err != nil {
			s.state = entity.SessionStateFailed
		}
	}()

	if err := s.driver.Navigate(ctx, s.targetURL); err != nil {
		return apperr.Wrap(op, apperr.CodeNavigationFailed, err, map[string]any{
			apperr.MetaReason:  "navigation_failed",
			apperr.MetaStage:   apperr.StageNavigation,
			apperr.MetaURL:     s.targetURL,
			apperr.MetaSession: s.id.String(),
		})
	}

	s.transition(entity.SessionStateNavigated)

	catalog, err := s.discoverer.Discover(ctx, s.driver)
	if err != nil {
		return err
	}

	if catalog.Len() == 0 {
		return apperr.Wrap(op, apperr.CodeDiscoveryFailed, errors.New("no voice effects found"), map[string]any{
			apperr.MetaReason:  "empty_catalog",
			apperr.MetaStage:   apperr.StageDiscovery,
			apperr.MetaSession: s.id.String(),
		})
	}

	s.catalog = catalog
	s.transition(entity.SessionStateDiscovered)

	return nil
}

// ApplyEffect uploads source, applies effect and returns the processed audio.
// Uploads and clicks are issued once; only the waits in between repeat their reads.
// Any failure leaves the session failed until Reset.
func (s *Session) ApplyEffect(ctx context.Context, source entity.AudioSource, effect entity.VoiceEffect) (payload entity.AudioPayload, err error) {
	const op = "ApplyEffect"
	logger := s.logger.With(
		zap.String(logg.Operation, op),
		zap.Int(logg.EffectID, effect.ID),
		zap.String(logg.Effect, effect.Title))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.Int("effect_id", effect.ID),
		attribute.String("effect", effect.Title))
	defer func() {
		step.End(err)
	}()

	if s.released {
		return entity.AudioPayload{}, apperr.WrapErrorWithReason(op, apperr.CodeInvalidState, "session_released")
	}

	if s.state != entity.SessionStateDiscovered {
		return entity.AudioPayload{}, apperr.Wrap(op, apperr.CodeInvalidState, fmt.Errorf("session is %s", s.state), map[string]any{
			apperr.MetaReason: "not_discovered",
			apperr.MetaState:  string(s.state),
		})
	}

	defer func() {
		if err != nil {
			s.state = entity.SessionStateFailed
			logger.Error("Session failed", zap.Error(err))
		}
	}()

	if source.IsZero() {
		return entity.AudioPayload{}, apperr.InvalidReqError(op, "source", errors.New("audio source is empty"))
	}

	if !s.catalog.Contains(effect) {
		return entity.AudioPayload{}, apperr.Wrap(op, apperr.CodeInvalidEffect, fmt.Errorf("effect %d %q is not part of this session", effect.ID, effect.Title), map[string]any{
			apperr.MetaReason:   "foreign_effect",
			apperr.MetaStage:    apperr.StageEffect,
			apperr.MetaEffectID: effect.ID,
			apperr.MetaSession:  s.id.String(),
		})
	}

	if effect.Handle.Stale() {
		return entity.AudioPayload{}, apperr.Wrap(op, apperr.CodeStaleElement, errors.New("effect handle outlived its page"), map[string]any{
			apperr.MetaReason:   "stale_effect_handle",
			apperr.MetaStage:    apperr.StageEffect,
			apperr.MetaEffectID: effect.ID,
		})
	}

	started := time.Now()

	step.AddEvent("uploading audio")

	if err := s.uploadAudio(ctx, source); err != nil {
		return entity.AudioPayload{}, err
	}

	s.transition(entity.SessionStateAudioUploaded)
	step.AddEvent("applying effect")

	if err := s.driver.Click(ctx, effect.Handle); err != nil {
		return entity.AudioPayload{}, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "effect_click_failed",
			apperr.MetaStage:    apperr.StageEffect,
			apperr.MetaEffectID: effect.ID,
		})
	}

	s.transition(entity.SessionStateEffectApplied)
	step.AddEvent("waiting for output")

	src, err := s.awaitOutput(ctx)
	if err != nil {
		return entity.AudioPayload{}, err
	}

	s.transition(entity.SessionStateOutputReady)
	step.AddEvent("retrieving output")

	data, err := s.bridge.Fetch(ctx, s.driver, src)
	if err != nil {
		return entity.AudioPayload{}, err
	}

	s.transition(entity.SessionStateSucceeded)
	step.SetAttributes(attribute.Int("bytes", len(data)))
	logger.Info("Effect applied",
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(started)))

	return entity.AudioPayload{
		Data:          data,
		SuggestedName: storage.OutputName(effect.Title),
	}, nil
}

func (s *Session) uploadAudio(ctx context.Context, source entity.AudioSource) error {
	const op = "uploadAudio"

	path := source.Path()
	if source.Kind() == entity.AudioSourceBytes {
		tmp, cleanup, err := s.storage.Materialize(source.Bytes())
		if err != nil {
			return err
		}
		defer cleanup()

		path = tmp
	}

	input, err := s.driver.FindElement(ctx, s.locators.FileInput)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "file_input_not_found",
			apperr.MetaStage:    apperr.StageUpload,
			apperr.MetaSelector: s.locators.FileInput,
		})
	}

	if err := s.driver.SetInputFile(ctx, input, path); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "upload_failed",
			apperr.MetaStage:  apperr.StageUpload,
			apperr.MetaPath:   path,
		})
	}

	indicator, err := s.driver.FindElement(ctx, s.locators.UploadSuccess)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "upload_indicator_not_found",
			apperr.MetaStage:    apperr.StageUpload,
			apperr.MetaSelector: s.locators.UploadSuccess,
		})
	}

	_, err = poll.Until(ctx,
		func(ctx context.Context) (string, error) {
			return s.driver.CSSProperty(ctx, indicator, locator.DisplayProp)
		},
		func(display string) bool { return display != locator.HiddenDisplay },
		s.uploadWait)
	if err != nil {
		return apperr.Wrap(op, codeOr(err, apperr.CodeActionFailed), err, map[string]any{
			apperr.MetaReason: "upload_not_acknowledged",
			apperr.MetaStage:  apperr.StageUpload,
		})
	}

	return nil
}

func (s *Session) awaitOutput(ctx context.Context) (string, error) {
	const op = "awaitOutput"

	audio, err := s.driver.FindElement(ctx, s.locators.OutputAudio)
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "output_audio_not_found",
			apperr.MetaStage:    apperr.StageOutput,
			apperr.MetaSelector: s.locators.OutputAudio,
		})
	}

	src, err := poll.Until(ctx,
		func(ctx context.Context) (string, error) {
			value, _, err := s.driver.Attribute(ctx, audio, locator.OutputSrcAttr)
			return value, err
		},
		func(src string) bool { return src != "" },
		s.outputWait)
	if err != nil {
		return "", apperr.Wrap(op, codeOr(err, apperr.CodeActionFailed), err, map[string]any{
			apperr.MetaReason: "output_not_ready",
			apperr.MetaStage:  apperr.StageOutput,
		})
	}

	return src, nil
}

func (s *Session) transition(next entity.SessionState) {
	s.logger.Debug("Session state changed",
		zap.String("from", string(s.state)),
		zap.String(logg.State, string(next)))
	s.state = next
}

func codeOr(err error, fallback string) string {
	if code := apperr.CodeOf(err); code != "" {
		return code
	}

	return fallback
}
