package usecase

import (
	"voicechanger/internal/usecase/adapters"
)

type serviceFactory struct {
	deps Params
}

func newServiceFactory(deps Params) *serviceFactory {
	return &serviceFactory{
		deps: deps,
	}
}

func (f *serviceFactory) CreateSessionService() adapters.SessionService {
	return NewOpener(f.deps)
}

func (f *serviceFactory) CreateStorageService() adapters.StorageService {
	return f.deps.Storage
}
