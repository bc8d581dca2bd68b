// Package snapshot implements ports.Driver over a saved copy of the page.
// It can locate and read elements but not run scripts, so it serves
// catalog inspection and fixtures rather than full sessions.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"voicechanger/internal/ports"
	"voicechanger/pkg/apperr"
	"voicechanger/pkg/logg"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const snapshotDriverName = "SnapshotDriver"

type Driver struct {
	logger     *zap.Logger
	source     string
	httpClient *http.Client
	doc        *goquery.Document
	epoch      atomic.Uint64
	ready      bool
	clicks     int
	inputs     []string
}

type element struct {
	sel    *goquery.Selection
	epoch  uint64
	driver *Driver
}

func (e *element) Stale() bool {
	return e.epoch != e.driver.epoch.Load()
}

// New returns a driver that serves source (a file path, file:// or http(s) URL) for every navigation.
// With an empty source the navigation URL itself is loaded.
func New(logger *zap.Logger, source string) *Driver {
	return &Driver{
		logger:     logger.With(zap.String(logg.Layer, snapshotDriverName)),
		source:     source,
		httpClient: &http.Client{},
	}
}

// FromHTML returns a ready driver already showing html.
func FromHTML(logger *zap.Logger, html string) (*Driver, error) {
	d := New(logger, "")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperr.Wrap("FromHTML", apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason: "html_parse_failed",
		})
	}

	d.doc = doc
	d.ready = true

	return d, nil
}

func (d *Driver) Launch(ctx context.Context) error {
	d.ready = true
	d.logger.Info("Snapshot driver ready", zap.String(logg.Path, d.source))

	return nil
}

func (d *Driver) Close(ctx context.Context) error {
	d.ready = false
	d.doc = nil
	d.epoch.Add(1)

	return nil
}

func (d *Driver) IsReady() bool {
	return d.ready
}

// Clicks reports how many clicks were dispatched; a snapshot cannot react to them.
func (d *Driver) Clicks() int {
	return d.clicks
}

// Inputs returns the file paths injected so far.
func (d *Driver) Inputs() []string {
	return append([]string(nil), d.inputs...)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	const op = "Navigate"

	if !d.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	location := url
	if d.source != "" {
		location = d.source
	}

	body, err := d.open(ctx, location)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "snapshot_open_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    location,
		})
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "html_parse_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    location,
		})
	}

	d.doc = doc
	d.epoch.Add(1)
	d.logger.Debug("Snapshot loaded", zap.String(logg.URL, location))

	return nil
}

func (d *Driver) open(ctx context.Context, location string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()

			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		return resp.Body, nil
	default:
		return os.Open(strings.TrimPrefix(location, "file://"))
	}
}

func (d *Driver) FindElement(ctx context.Context, locator string) (ports.ElementHandle, error) {
	const op = "FindElement"

	if err := d.checkReady(op); err != nil {
		return nil, err
	}

	sel := d.doc.Find(locator).First()
	if sel.Length() == 0 {
		return nil, apperr.Wrap(op, apperr.CodeNotFound, fmt.Errorf("element not found: %s", locator), map[string]any{
			apperr.MetaReason:   "element_not_found",
			apperr.MetaSelector: locator,
		})
	}

	return d.wrap(sel), nil
}

func (d *Driver) FindElements(ctx context.Context, locator string) ([]ports.ElementHandle, error) {
	const op = "FindElements"

	if err := d.checkReady(op); err != nil {
		return nil, err
	}

	found := d.doc.Find(locator)
	handles := make([]ports.ElementHandle, 0, found.Length())

	found.Each(func(_ int, sel *goquery.Selection) {
		handles = append(handles, d.wrap(sel))
	})

	return handles, nil
}

func (d *Driver) FindChild(ctx context.Context, parent ports.ElementHandle, locator string) (ports.ElementHandle, error) {
	const op = "FindChild"

	el, err := d.resolve(op, parent)
	if err != nil {
		return nil, err
	}

	sel := el.sel.Find(locator).First()
	if sel.Length() == 0 {
		return nil, apperr.Wrap(op, apperr.CodeNotFound, fmt.Errorf("child not found: %s", locator), map[string]any{
			apperr.MetaReason:   "element_not_found",
			apperr.MetaSelector: locator,
		})
	}

	return d.wrap(sel), nil
}

func (d *Driver) TagName(ctx context.Context, handle ports.ElementHandle) (string, error) {
	el, err := d.resolve("TagName", handle)
	if err != nil {
		return "", err
	}

	return strings.ToLower(goquery.NodeName(el.sel)), nil
}

func (d *Driver) Attribute(ctx context.Context, handle ports.ElementHandle, name string) (string, bool, error) {
	el, err := d.resolve("Attribute", handle)
	if err != nil {
		return "", false, err
	}

	value, ok := el.sel.Attr(name)

	return value, ok, nil
}

func (d *Driver) TextContent(ctx context.Context, handle ports.ElementHandle) (string, error) {
	el, err := d.resolve("TextContent", handle)
	if err != nil {
		return "", err
	}

	return el.sel.Text(), nil
}

// CSSProperty reads the inline style only. An element without an inline display
// reports "none" when it carries the hidden attribute and "block" otherwise.
func (d *Driver) CSSProperty(ctx context.Context, handle ports.ElementHandle, name string) (string, error) {
	el, err := d.resolve("CSSProperty", handle)
	if err != nil {
		return "", err
	}

	style, _ := el.sel.Attr("style")
	if value, ok := inlineStyle(style)[strings.ToLower(name)]; ok {
		return value, nil
	}

	if strings.EqualFold(name, "display") {
		if _, hidden := el.sel.Attr("hidden"); hidden {
			return "none", nil
		}

		return "block", nil
	}

	return "", nil
}

func (d *Driver) Click(ctx context.Context, handle ports.ElementHandle) error {
	if _, err := d.resolve("Click", handle); err != nil {
		return err
	}

	d.clicks++

	return nil
}

func (d *Driver) SetInputFile(ctx context.Context, handle ports.ElementHandle, path string) error {
	const op = "SetInputFile"

	if _, err := d.resolve(op, handle); err != nil {
		return err
	}

	if _, err := os.Stat(path); err != nil {
		return apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason: "input_file_missing",
			apperr.MetaPath:   path,
		})
	}

	d.inputs = append(d.inputs, path)

	return nil
}

func (d *Driver) RunAsyncScript(ctx context.Context, script string, arg any) (any, error) {
	return nil, apperr.WrapErrorWithReason("RunAsyncScript", apperr.CodeActionFailed, "scripts_unsupported_in_snapshot")
}

func (d *Driver) wrap(sel *goquery.Selection) *element {
	return &element{sel: sel, epoch: d.epoch.Load(), driver: d}
}

func (d *Driver) checkReady(op string) error {
	if !d.ready || d.doc == nil {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "page_not_loaded")
	}

	return nil
}

func (d *Driver) resolve(op string, handle ports.ElementHandle) (*element, error) {
	if err := d.checkReady(op); err != nil {
		return nil, err
	}

	el, ok := handle.(*element)
	if !ok || el == nil || el.driver != d {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeInvalidArgument, "foreign_element_handle")
	}

	if el.Stale() {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeStaleElement, "element_handle_stale")
	}

	return el, nil
}

func inlineStyle(style string) map[string]string {
	props := make(map[string]string)

	for _, decl := range strings.Split(style, ";") {
		key, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}

		props[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	return props
}

var _ ports.BrowserDriver = (*Driver)(nil)
