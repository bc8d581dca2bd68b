package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"voicechanger/internal/config"
	"voicechanger/internal/ports"
	"voicechanger/pkg/apperr"
	"voicechanger/pkg/logg"
	"voicechanger/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	browserManagerName = "BrowserManager"
	browserTracer      = "browser.manager"
	clickTimeout       = 15000
	audioMimeType      = "audio/mpeg"
)

type Manager struct {
	config         *config.Config
	logger         *zap.Logger
	tracer         trace.Tracer
	playwright     *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page
	epoch          atomic.Uint64
	ready          bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewManager(params Params) *Manager {
	return &Manager{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, browserManagerName)),
		tracer: otel.Tracer(browserTracer),
		ready:  false,
	}
}

func (m *Manager) Launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Launching browser...")

	if m.config.BrowserConfig.Install {
		step.AddEvent("installing playwright")

		if err = playwright.Install(); err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "playwright_install_failed",
				apperr.MetaStage:  apperr.StageBrowser,
			})
		}
	}

	step.AddEvent("starting playwright")

	pw, err := playwright.Run()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_start_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.playwright = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.config.BrowserConfig.Headless),
		SlowMo:   playwright.Float(float64(m.config.BrowserConfig.SlowMo)),
		Args:     m.config.BrowserConfig.Args,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "browser_launch_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.browser = browser

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		AcceptDownloads:   playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "context_create_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.browserContext = browserContext

	page, err := browserContext.NewPage()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "page_create_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.page = page

	m.ready = true
	logger.Info("Browser launched successfully", zap.Strings("args", m.config.BrowserConfig.Args))

	return nil
}

func (m *Manager) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Closing browser...")

	m.ready = false
	m.epoch.Add(1)

	if m.browserContext != nil {
		if err := m.browserContext.Close(); err != nil {
			logger.Warn("Failed to close context", zap.Error(err))
		}
	}

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			logger.Warn("Failed to close browser", zap.Error(err))
		}
	}

	if m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "playwright_stop_failed",
			})
		}
	}

	logger.Info("Browser closed")

	return nil
}

func (m *Manager) IsReady() bool {
	return m.ready
}

// ensurePageActive fails instead of silently reopening: handles into a replaced page would be stale anyway.
func (m *Manager) ensurePageActive(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(op, apperr.CodeCancelled, err, nil)
	}

	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if m.page == nil || m.page.IsClosed() {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "page_not_active")
	}

	return nil
}

func (m *Manager) Navigate(ctx context.Context, url string) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if err := m.ensurePageActive(ctx, op); err != nil {
		return err
	}

	step.AddEvent("navigating to URL")
	m.epoch.Add(1)

	_, err = m.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(m.config.BrowserConfig.Timeout)),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	step.AddEvent("navigation completed")

	return nil
}

func (m *Manager) FindElement(ctx context.Context, locator string) (ports.ElementHandle, error) {
	const op = "FindElement"

	if err := m.ensurePageActive(ctx, op); err != nil {
		return nil, err
	}

	el, err := m.page.QuerySelector(locator)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "query_failed",
			apperr.MetaSelector: locator,
		})
	}

	if el == nil {
		return nil, apperr.Wrap(op, apperr.CodeNotFound, fmt.Errorf("element not found: %s", locator), map[string]any{
			apperr.MetaReason:   "element_not_found",
			apperr.MetaSelector: locator,
		})
	}

	return m.wrap(el), nil
}

func (m *Manager) FindElements(ctx context.Context, locator string) ([]ports.ElementHandle, error) {
	const op = "FindElements"

	if err := m.ensurePageActive(ctx, op); err != nil {
		return nil, err
	}

	found, err := m.page.QuerySelectorAll(locator)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "query_failed",
			apperr.MetaSelector: locator,
		})
	}

	handles := make([]ports.ElementHandle, 0, len(found))
	for _, el := range found {
		handles = append(handles, m.wrap(el))
	}

	return handles, nil
}

func (m *Manager) FindChild(ctx context.Context, parent ports.ElementHandle, locator string) (ports.ElementHandle, error) {
	const op = "FindChild"

	el, err := m.resolve(ctx, op, parent)
	if err != nil {
		return nil, err
	}

	child, err := el.handle.QuerySelector(locator)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "query_failed",
			apperr.MetaSelector: locator,
		})
	}

	if child == nil {
		return nil, apperr.Wrap(op, apperr.CodeNotFound, fmt.Errorf("child not found: %s", locator), map[string]any{
			apperr.MetaReason:   "element_not_found",
			apperr.MetaSelector: locator,
		})
	}

	return m.wrap(child), nil
}

func (m *Manager) TagName(ctx context.Context, handle ports.ElementHandle) (string, error) {
	return m.evaluateString(ctx, "TagName", handle, `(el) => el.tagName.toLowerCase()`, nil)
}

func (m *Manager) Attribute(ctx context.Context, handle ports.ElementHandle, name string) (string, bool, error) {
	const op = "Attribute"

	el, err := m.resolve(ctx, op, handle)
	if err != nil {
		return "", false, err
	}

	result, err := el.handle.Evaluate(`(el, name) => el.getAttribute(name)`, name)
	if err != nil {
		return "", false, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
			apperr.MetaField:  name,
		})
	}

	value, ok := result.(string)

	return value, ok, nil
}

func (m *Manager) TextContent(ctx context.Context, handle ports.ElementHandle) (string, error) {
	const op = "TextContent"

	el, err := m.resolve(ctx, op, handle)
	if err != nil {
		return "", err
	}

	text, err := el.handle.TextContent()
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "text_content_failed",
		})
	}

	return text, nil
}

func (m *Manager) CSSProperty(ctx context.Context, handle ports.ElementHandle, name string) (string, error) {
	return m.evaluateString(ctx, "CSSProperty", handle,
		`(el, name) => window.getComputedStyle(el).getPropertyValue(name)`, name)
}

// Click dispatches a single click. It is never retried: the page reacts to every click.
func (m *Manager) Click(ctx context.Context, handle ports.ElementHandle) (err error) {
	const op = "Click"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	el, err := m.resolve(ctx, op, handle)
	if err != nil {
		return err
	}

	err = el.handle.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(clickTimeout),
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "click_failed",
			apperr.MetaStage:  apperr.StageEffect,
		})
	}

	return nil
}

func (m *Manager) SetInputFile(ctx context.Context, handle ports.ElementHandle, path string) (err error) {
	const op = "SetInputFile"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Path, path))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("path", path))
	defer func() {
		step.End(err)
	}()

	el, err := m.resolve(ctx, op, handle)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason: "input_file_unreadable",
			apperr.MetaPath:   path,
		})
	}

	err = el.handle.SetInputFiles([]playwright.InputFile{{
		Name:     filepath.Base(path),
		MimeType: audioMimeType,
		Buffer:   data,
	}})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "set_input_files_failed",
			apperr.MetaStage:  apperr.StageUpload,
			apperr.MetaPath:   path,
		})
	}

	return nil
}

func (m *Manager) RunAsyncScript(ctx context.Context, script string, arg any) (result any, err error) {
	const op = "RunAsyncScript"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err := m.ensurePageActive(ctx, op); err != nil {
		return nil, err
	}

	result, err = m.page.Evaluate(script, arg)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
		})
	}

	return result, nil
}

func (m *Manager) evaluateString(ctx context.Context, op string, handle ports.ElementHandle, script string, arg any) (string, error) {
	el, err := m.resolve(ctx, op, handle)
	if err != nil {
		return "", err
	}

	var result any
	if arg == nil {
		result, err = el.handle.Evaluate(script)
	} else {
		result, err = el.handle.Evaluate(script, arg)
	}

	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
		})
	}

	value, _ := result.(string)

	return value, nil
}

var _ ports.BrowserDriver = (*Manager)(nil)
