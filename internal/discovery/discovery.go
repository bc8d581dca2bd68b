// Package discovery builds the voice-effect catalog from the rendered page.
package discovery

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
	"voicechanger/internal/entity"
	"voicechanger/internal/locator"
	"voicechanger/internal/ports"
	"voicechanger/pkg/apperr"
	"voicechanger/pkg/logg"
	"voicechanger/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	discovererName   = "EffectDiscoverer"
	discovererTracer = "discovery.effects"
)

var transformPattern = regexp.MustCompile(locator.TransformPattern)

type Discoverer struct {
	locators locator.Catalog
	logger   *zap.Logger
	tracer   trace.Tracer
}

type Params struct {
	fx.In

	Locators locator.Catalog
	Logger   *zap.Logger
}

func NewDiscoverer(params Params) *Discoverer {
	return &Discoverer{
		locators: params.Locators,
		logger:   params.Logger.With(zap.String(logg.Layer, discovererName)),
		tracer:   otel.Tracer(discovererTracer),
	}
}

// Discover walks the effect container's children in document order.
// Cards with the wrong tag or without any title source are skipped; IDs count accepted cards only.
// A missing container is an error, an empty result is not.
func (d *Discoverer) Discover(ctx context.Context, driver ports.Driver) (catalog entity.Catalog, err error) {
	const op = "Discover"
	logger := d.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, d.tracer, logger, op,
		attribute.String("container", d.locators.EffectContainer))
	defer func() {
		step.End(err)
	}()

	if _, err := driver.FindElement(ctx, d.locators.EffectContainer); err != nil {
		return entity.Catalog{}, apperr.Wrap(op, apperr.CodeDiscoveryFailed, err, map[string]any{
			apperr.MetaReason:   "container_not_found",
			apperr.MetaStage:    apperr.StageDiscovery,
			apperr.MetaSelector: d.locators.EffectContainer,
		})
	}

	candidates, err := driver.FindElements(ctx, d.locators.EffectCards)
	if err != nil {
		return entity.Catalog{}, apperr.Wrap(op, apperr.CodeDiscoveryFailed, err, map[string]any{
			apperr.MetaReason:   "cards_lookup_failed",
			apperr.MetaStage:    apperr.StageDiscovery,
			apperr.MetaSelector: d.locators.EffectCards,
		})
	}

	catalog = entity.Catalog{
		ID:      uuid.New(),
		Effects: make([]entity.VoiceEffect, 0, len(candidates)),
	}

	for index, candidate := range candidates {
		tag, err := driver.TagName(ctx, candidate)
		if err != nil {
			return entity.Catalog{}, wrapCandidateErr(op, index, err)
		}

		if tag != d.locators.EffectTag {
			continue
		}

		title, err := d.title(ctx, driver, candidate)
		if err != nil {
			return entity.Catalog{}, wrapCandidateErr(op, index, err)
		}

		if title == "" {
			logger.Debug("Skipping effect card without title", zap.Int("index", index))

			continue
		}

		catalog.Effects = append(catalog.Effects, entity.VoiceEffect{
			ID:        len(catalog.Effects),
			Title:     title,
			Handle:    candidate,
			CatalogID: catalog.ID,
		})
	}

	step.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("effects", catalog.Len()),
	)
	logger.Info("Effects discovered",
		zap.String(logg.CatalogID, catalog.ID.String()),
		zap.Int("candidates", len(candidates)),
		zap.Int("effects", catalog.Len()))

	return catalog, nil
}

func (d *Discoverer) title(ctx context.Context, driver ports.Driver, card ports.ElementHandle) (string, error) {
	heading, err := driver.FindChild(ctx, card, d.locators.EffectTitle)
	switch {
	case err == nil:
		text, err := driver.TextContent(ctx, heading)
		if err != nil {
			return "", err
		}

		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
	case !apperr.Is(err, apperr.CodeNotFound):
		return "", err
	}

	handler, ok, err := driver.Attribute(ctx, card, d.locators.EffectHandler)
	if err != nil || !ok {
		return "", err
	}

	return TitleFromHandler(handler), nil
}

// TitleFromHandler extracts the token of a loadTransform(event, '<token>') call
// and capitalizes it: first letter upper case, the rest lower case.
// It returns "" when the handler does not match.
func TitleFromHandler(handler string) string {
	match := transformPattern.FindStringSubmatch(handler)
	if match == nil {
		return ""
	}

	return capitalize(match[1])
}

func capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return ""
	}

	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

func wrapCandidateErr(op string, index int, err error) error {
	return apperr.Wrap(op, apperr.CodeDiscoveryFailed, err, map[string]any{
		apperr.MetaReason: "candidate_read_failed",
		apperr.MetaStage:  apperr.StageDiscovery,
		"index":           index,
	})
}
