package usecase

import (
	"voicechanger/internal/bridge"
	"voicechanger/internal/config"
	"voicechanger/internal/discovery"
	"voicechanger/internal/locator"
	"voicechanger/internal/ports"
	"voicechanger/internal/storage"
	"voicechanger/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Sessions adapters.SessionService
	Storage  adapters.StorageService
}

type Params struct {
	fx.In

	Logger     *zap.Logger
	Config     *config.Config
	Driver     ports.Driver
	Locators   locator.Catalog
	Discoverer *discovery.Discoverer
	Bridge     *bridge.Bridge
	Storage    *storage.Storage
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)

	return &Service{
		Sessions: factory.CreateSessionService(),
		Storage:  factory.CreateStorageService(),
	}
}
