package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"voicechanger/internal/config"
	"voicechanger/internal/entity"
	"voicechanger/internal/usecase"
	"voicechanger/internal/usecase/adapters"
	"voicechanger/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	runnerName   = "Runner"
	timingDigits = 3
)

type Job struct {
	InputPath  string
	OutputName string
	// Effect is matched against titles case-insensitively; empty picks at random.
	Effect string
}

type Runner struct {
	config  *config.Config
	logger  *zap.Logger
	usecase *usecase.Service
	out     io.Writer
}

type Params struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Usecase *usecase.Service
}

func NewRunner(params Params) *Runner {
	return &Runner{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, runnerName)),
		usecase: params.Usecase,
		out:     os.Stdout,
	}
}

// JobFromConfig builds the job the programs run from INPUT_PATH, OUTPUT_NAME and EFFECT.
func (r *Runner) JobFromConfig() Job {
	return Job{
		InputPath:  r.config.JobConfig.InputPath,
		OutputName: r.config.JobConfig.OutputName,
		Effect:     r.config.JobConfig.Effect,
	}
}

// Run applies one effect to the input file and writes the result, returning the output path.
func (r *Runner) Run(ctx context.Context, job Job) (string, error) {
	logger := r.logger.With(zap.String(logg.Operation, "Run"), zap.String(logg.Path, job.InputPath))

	data, err := r.usecase.Storage.ReadAudio(job.InputPath)
	if err != nil {
		return "", err
	}

	session, err := r.usecase.Sessions.Open(ctx)
	if err != nil {
		return "", err
	}
	defer session.Release()

	effect, err := pickEffect(session, job.Effect)
	if err != nil {
		return "", err
	}

	logger.Info("Applying effect", zap.Int(logg.EffectID, effect.ID), zap.String(logg.Effect, effect.Title))
	fmt.Fprintf(r.out, "Effect: %s\n", effect.Title)

	payload, err := session.ApplyEffect(ctx, entity.AudioFromBytes(data), effect)
	if err != nil {
		return "", err
	}

	path, err := r.usecase.Storage.WriteAudio(payload.Data, job.OutputName)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(r.out, "Saved: %s (%d bytes)\n", path, len(payload.Data))

	return path, nil
}

// ListEffects prints the catalog of a fresh session.
func (r *Runner) ListEffects(ctx context.Context) error {
	session, err := r.usecase.Sessions.Open(ctx)
	if err != nil {
		return err
	}
	defer session.Release()

	for _, effect := range session.Effects() {
		fmt.Fprintf(r.out, "%3d  %s\n", effect.ID, effect.Title)
	}

	return nil
}

// PrintTiming writes the timing summary of a finished job.
func (r *Runner) PrintTiming(name string, start, end time.Time) {
	fmt.Fprintf(r.out, "Function '%s'\n", name)
	fmt.Fprintf(r.out, "Start time: %s\n", start.Format(time.DateTime+".000000"))
	fmt.Fprintf(r.out, "End time: %s\n", end.Format(time.DateTime+".000000"))
	fmt.Fprintf(r.out, "Execution time: %ss.\n", significant(end.Sub(start).Seconds(), timingDigits))
}

// significant formats v with digits significant digits. Fixed notation keeps at least one
// fractional digit and switches to an exponent once the integer part needs all the digits.
func significant(v float64, digits int) string {
	sci := strconv.FormatFloat(v, 'e', digits-1, 64)

	mantissa, exp, ok := strings.Cut(sci, "e")
	if !ok {
		return sci
	}

	n, err := strconv.Atoi(exp)
	if err != nil {
		return sci
	}

	if n < -4 || n >= digits-1 {
		if strings.Contains(mantissa, ".") {
			mantissa = strings.TrimRight(strings.TrimRight(mantissa, "0"), ".")
		}

		return mantissa + "e" + exp
	}

	fixed := strconv.FormatFloat(v, 'g', digits, 64)
	if !strings.Contains(fixed, ".") {
		fixed += ".0"
	}

	return fixed
}

func pickEffect(session adapters.VoiceSession, title string) (entity.VoiceEffect, error) {
	if title != "" {
		return session.EffectByTitle(title)
	}

	return session.RandomEffect(nil), nil
}
