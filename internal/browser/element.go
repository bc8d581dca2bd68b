package browser

import (
	"context"
	"voicechanger/internal/ports"
	"voicechanger/pkg/apperr"

	"github.com/playwright-community/playwright-go"
)

// element pins a playwright handle to the navigation it was found in.
type element struct {
	handle  playwright.ElementHandle
	epoch   uint64
	manager *Manager
}

func (e *element) Stale() bool {
	return e.epoch != e.manager.epoch.Load()
}

func (m *Manager) wrap(handle playwright.ElementHandle) *element {
	return &element{handle: handle, epoch: m.epoch.Load(), manager: m}
}

func (m *Manager) resolve(ctx context.Context, op string, handle ports.ElementHandle) (*element, error) {
	if err := m.ensurePageActive(ctx, op); err != nil {
		return nil, err
	}

	el, ok := handle.(*element)
	if !ok || el == nil || el.manager != m {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeInvalidArgument, "foreign_element_handle")
	}

	if el.Stale() {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeStaleElement, "element_handle_stale")
	}

	return el, nil
}
