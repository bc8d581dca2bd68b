package usecase

import (
	"context"
	"errors"
	"sync"
	"time"
	"voicechanger/internal/config"
	"voicechanger/internal/entity"
	"voicechanger/internal/usecase/adapters"
	"voicechanger/pkg/apperr"
	"voicechanger/pkg/logg"
	"voicechanger/pkg/poll"
	"voicechanger/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	sessionServiceName = "SessionService"
	sessionTracer      = "usecase.session"
)

var errDriverInUse = errors.New("driver is held by another session")

// Opener hands out sessions over a single driver, one at a time.
type Opener struct {
	deps   Params
	logger *zap.Logger
	tracer trace.Tracer

	mu     sync.Mutex
	active *Session
}

func NewOpener(deps Params) *Opener {
	return &Opener{
		deps:   deps,
		logger: deps.Logger.With(zap.String(logg.Layer, sessionServiceName)),
		tracer: otel.Tracer(sessionTracer),
	}
}

// Open navigates to the target and discovers the effect catalog before returning.
// It fails while another session still holds the driver.
func (o *Opener) Open(ctx context.Context) (session adapters.VoiceSession, err error) {
	const op = "Open"
	logger := o.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, o.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active != nil {
		return nil, apperr.Wrap(op, apperr.CodeInvalidState, errDriverInUse, map[string]any{
			apperr.MetaReason:  "driver_in_use",
			apperr.MetaSession: o.active.id.String(),
		})
	}

	s := o.newSession()
	step.SetAttributes(attribute.String("session_id", s.id.String()))

	if err := s.start(ctx); err != nil {
		return nil, err
	}

	o.active = s
	s.logger.Info("Session opened", zap.Int("effects", s.catalog.Len()))

	return s, nil
}

func (o *Opener) newSession() *Session {
	cfg := o.deps.Config.SessionConfig
	id := uuid.New()
	logger := o.logger.With(zap.String(logg.SessionID, id.String()))

	s := &Session{
		id:         id,
		targetURL:  cfg.TargetURL,
		driver:     o.deps.Driver,
		locators:   o.deps.Locators,
		discoverer: o.deps.Discoverer,
		bridge:     o.deps.Bridge,
		storage:    o.deps.Storage,
		uploadWait: waitOptions("awaitUploadAcknowledged", cfg, cfg.UploadTimeout, logger),
		outputWait: waitOptions("awaitOutputReady", cfg, cfg.OutputTimeout, logger),
		logger:     logger,
		tracer:     o.tracer,
		state:      entity.SessionStateCreated,
	}

	s.release = func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		if o.active == s {
			o.active = nil
		}

		logger.Info("Session released", zap.String(logg.State, string(s.state)))
	}

	return s
}

func waitOptions(name string, cfg *config.SessionConfig, maxWait time.Duration, logger *zap.Logger) poll.Options {
	return poll.Options{
		Name:        name,
		Interval:    cfg.PollInterval,
		MaxInterval: cfg.PollMaxInterval,
		MaxWait:     maxWait,
		Notify: func(reads int, next time.Duration) {
			logger.Debug("Condition not met yet",
				zap.String("wait", name),
				zap.Int(logg.Attempt, reads),
				zap.Duration("next", next))
		},
	}
}
