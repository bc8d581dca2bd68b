// Package bridge retrieves media the page already holds (blob:, data: or same-origin URLs)
// by reading it inside the page and carrying it back as base64 text.
package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"voicechanger/internal/ports"
	"voicechanger/pkg/apperr"
	"voicechanger/pkg/logg"
	"voicechanger/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	bridgeName   = "BinaryBridge"
	bridgeTracer = "bridge.binary"
)

type Bridge struct {
	logger *zap.Logger
	tracer trace.Tracer
}

type Params struct {
	fx.In

	Logger *zap.Logger
}

func NewBridge(params Params) *Bridge {
	return &Bridge{
		logger: params.Logger.With(zap.String(logg.Layer, bridgeName)),
		tracer: otel.Tracer(bridgeTracer),
	}
}

// Fetch returns the raw bytes behind address as seen from the page.
func (b *Bridge) Fetch(ctx context.Context, driver ports.Driver, address string) (data []byte, err error) {
	const op = "Fetch"
	logger := b.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, address))

	ctx, step := tracing.StartSpan(ctx, b.tracer, logger, op, attribute.String("url", address))
	defer func() {
		step.End(err)
	}()

	if address == "" {
		return nil, apperr.InvalidReqError(op, "address", fmt.Errorf("address cannot be empty"))
	}

	result, err := driver.RunAsyncScript(ctx, fetchScript, address)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeRetrievalFailed, err, map[string]any{
			apperr.MetaReason: "script_failed",
			apperr.MetaStage:  apperr.StageRetrieval,
			apperr.MetaURL:    address,
		})
	}

	step.AddEvent("script resolved")

	data, err = Decode(result)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeRetrievalFailed, err, map[string]any{
			apperr.MetaReason: "decode_failed",
			apperr.MetaStage:  apperr.StageRetrieval,
			apperr.MetaURL:    address,
		})
	}

	step.SetAttributes(attribute.Int("bytes", len(data)))
	logger.Debug("Media retrieved", zap.Int("bytes", len(data)))

	return data, nil
}

// StatusError is reported when the in-page request resolved with a status instead of data.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Decode turns the script's resolved value into bytes. A string is base64 text;
// a number is the failed request's status.
func Decode(result any) ([]byte, error) {
	switch v := result.(type) {
	case string:
		data, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("malformed base64 payload: %w", err)
		}

		return data, nil
	case int:
		return nil, statusError(v)
	case int64:
		return nil, statusError(int(v))
	case float64:
		return nil, statusError(int(v))
	case nil:
		return nil, fmt.Errorf("script resolved without a value")
	default:
		return nil, fmt.Errorf("unexpected script result type %T", result)
	}
}

func statusError(status int) error {
	return apperr.Wrap("Decode", apperr.CodeRetrievalFailed, &StatusError{Status: status}, map[string]any{
		apperr.MetaReason: "request_failed",
		apperr.MetaStatus: status,
	})
}
