package ports

import (
	"context"
)

// ElementHandle is a reference into driver-owned page state.
// It becomes stale once the page navigates and must be checked before use.
type ElementHandle interface {
	Stale() bool
}

type Driver interface {
	Navigate(ctx context.Context, url string) error
	FindElement(ctx context.Context, locator string) (ElementHandle, error)
	FindElements(ctx context.Context, locator string) ([]ElementHandle, error)
	FindChild(ctx context.Context, parent ElementHandle, locator string) (ElementHandle, error)
	TagName(ctx context.Context, element ElementHandle) (string, error)
	Attribute(ctx context.Context, element ElementHandle, name string) (value string, ok bool, err error)
	TextContent(ctx context.Context, element ElementHandle) (string, error)
	CSSProperty(ctx context.Context, element ElementHandle, name string) (string, error)
	Click(ctx context.Context, element ElementHandle) error
	SetInputFile(ctx context.Context, element ElementHandle, path string) error
	// RunAsyncScript evaluates a function expression in the page with arg and awaits the value it resolves to.
	RunAsyncScript(ctx context.Context, script string, arg any) (any, error)
}

type Launcher interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	IsReady() bool
}

type BrowserDriver interface {
	Driver
	Launcher
}
