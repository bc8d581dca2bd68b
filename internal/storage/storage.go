// Package storage moves audio between local disk and the session.
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"voicechanger/pkg/apperr"
	"voicechanger/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	storageName   = "AudioStorage"
	DefaultName   = "VoiceChangerIO.mp3"
	audioExt      = ".mp3"
	tempPattern   = "voicechanger-*" + audioExt
	outputPerm    = 0o644
	tempDirectory = ""
)

type Storage struct {
	logger *zap.Logger
	dir    string
}

type Params struct {
	fx.In

	Logger *zap.Logger
}

func NewStorage(params Params) *Storage {
	return &Storage{
		logger: params.Logger.With(zap.String(logg.Layer, storageName)),
		dir:    tempDirectory,
	}
}

func (s *Storage) ReadAudio(path string) ([]byte, error) {
	const op = "ReadAudio"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason: "read_failed",
			apperr.MetaStage:  apperr.StageStorage,
			apperr.MetaPath:   path,
		})
	}

	return data, nil
}

// Materialize writes data to a temporary file so a driver can pick it up by path.
// The returned cleanup removes the file.
func (s *Storage) Materialize(data []byte) (path string, cleanup func(), err error) {
	const op = "Materialize"

	file, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return "", nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "temp_create_failed",
			apperr.MetaStage:  apperr.StageStorage,
		})
	}

	path = file.Name()
	cleanup = func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove temp audio", zap.String(logg.Path, path), zap.Error(err))
		}
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		cleanup()

		return "", nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "temp_write_failed",
			apperr.MetaStage:  apperr.StageStorage,
			apperr.MetaPath:   path,
		})
	}

	if err := file.Close(); err != nil {
		cleanup()

		return "", nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "temp_close_failed",
			apperr.MetaStage:  apperr.StageStorage,
			apperr.MetaPath:   path,
		})
	}

	return path, cleanup, nil
}

// WriteAudio stores data under OutputName(name) and returns the absolute path.
func (s *Storage) WriteAudio(data []byte, name string) (string, error) {
	const op = "WriteAudio"

	path, err := filepath.Abs(OutputName(name))
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason: "bad_output_path",
			apperr.MetaStage:  apperr.StageStorage,
		})
	}

	if err := os.WriteFile(path, data, outputPerm); err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "write_failed",
			apperr.MetaStage:  apperr.StageStorage,
			apperr.MetaPath:   path,
		})
	}

	s.logger.Info("Audio saved", zap.String(logg.Path, path), zap.Int("bytes", len(data)))

	return path, nil
}

// OutputName appends .mp3 unless name already ends with it in any case; an empty name means DefaultName.
func OutputName(name string) string {
	if name == "" {
		return DefaultName
	}

	if !strings.HasSuffix(strings.ToLower(name), audioExt) {
		name += audioExt
	}

	return name
}
