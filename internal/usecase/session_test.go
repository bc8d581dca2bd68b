package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"voicechanger/internal/bridge"
	"voicechanger/internal/browser/snapshot"
	"voicechanger/internal/config"
	"voicechanger/internal/discovery"
	"voicechanger/internal/entity"
	"voicechanger/internal/locator"
	"voicechanger/internal/ports"
	"voicechanger/internal/storage"
	"voicechanger/internal/usecase/adapters"
	"voicechanger/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const pageTemplate = `<html><body>
<section><h1>Voice Changer</h1></section>
<section></section>
<section>
  <div><div><input type="file" accept="audio/*"></div></div>
  <div id="audio-load-success" style="display: none">Loaded</div>
  <audio id="output-audio-tag" controls></audio>
</section>
<section><div>%s</div></section>
</body></html>`

const fiveCards = `
  <div onclick="loadTransform(event, 'anonymous')"><h2>Anonymous</h2></div>
  <div onclick="loadTransform(event, 'robot')"><h2></h2></div>
  <div><img src="broken.png"></div>
  <div onclick="loadTransform(event, 'cave')"><h2>Cave</h2></div>
  <div onclick="loadTransform(event, 'ogre')"><h2>Ogre</h2></div>`

// scriptedPage serves a saved page and scripts the parts the site changes after load.
type scriptedPage struct {
	*snapshot.Driver
	displays    []string
	sources     []string
	fetchResult any
	navigateErr error
	cssReads    int
	srcReads    int
	events      []string
}

func (p *scriptedPage) Navigate(ctx context.Context, url string) error {
	if p.navigateErr != nil {
		return p.navigateErr
	}

	p.events = append(p.events, "navigate")

	return p.Driver.Navigate(ctx, url)
}

func (p *scriptedPage) CSSProperty(ctx context.Context, el ports.ElementHandle, name string) (string, error) {
	if p.id(ctx, el) != "audio-load-success" {
		return p.Driver.CSSProperty(ctx, el, name)
	}

	value := p.displays[min(p.cssReads, len(p.displays)-1)]
	p.cssReads++
	p.events = append(p.events, "display:"+value)

	return value, nil
}

func (p *scriptedPage) Attribute(ctx context.Context, el ports.ElementHandle, name string) (string, bool, error) {
	if name != "src" || p.id(ctx, el) != "output-audio-tag" {
		return p.Driver.Attribute(ctx, el, name)
	}

	value := p.sources[min(p.srcReads, len(p.sources)-1)]
	p.srcReads++
	p.events = append(p.events, "src:"+value)

	return value, value != "", nil
}

func (p *scriptedPage) Click(ctx context.Context, el ports.ElementHandle) error {
	p.events = append(p.events, "click")

	return p.Driver.Click(ctx, el)
}

func (p *scriptedPage) SetInputFile(ctx context.Context, el ports.ElementHandle, path string) error {
	p.events = append(p.events, "upload")

	return p.Driver.SetInputFile(ctx, el, path)
}

func (p *scriptedPage) RunAsyncScript(ctx context.Context, script string, arg any) (any, error) {
	p.events = append(p.events, fmt.Sprintf("fetch:%v", arg))

	return p.fetchResult, nil
}

func (p *scriptedPage) id(ctx context.Context, el ports.ElementHandle) string {
	id, _, _ := p.Driver.Attribute(ctx, el, "id")

	return id
}

func (p *scriptedPage) count(event string) int {
	n := 0
	for _, e := range p.events {
		if e == event {
			n++
		}
	}

	return n
}

func (p *scriptedPage) index(event string, nth int) int {
	seen := 0
	for i, e := range p.events {
		if e == event {
			seen++
			if seen == nth {
				return i
			}
		}
	}

	return -1
}

var audio = []byte("ID3\x04\x00fake mpeg frames\xff\xfb")

func newScriptedPage(t *testing.T, cards string) *scriptedPage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "voicechanger.html")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(pageTemplate, cards)), 0o644))

	driver := snapshot.New(zap.NewNop(), path)
	require.NoError(t, driver.Launch(context.Background()))

	return &scriptedPage{
		Driver:      driver,
		displays:    []string{"none", "none", "block"},
		sources:     []string{"", "", "blob:https://voicechanger.io/4f1c"},
		fetchResult: base64.StdEncoding.EncodeToString(audio),
	}
}

func newTestOpener(t *testing.T, driver ports.Driver) *Opener {
	t.Helper()

	logger := zap.NewNop()
	cfg := &config.Config{
		SessionConfig: &config.SessionConfig{
			TargetURL:       "https://voicechanger.io/",
			PollInterval:    time.Millisecond,
			PollMaxInterval: 2 * time.Millisecond,
			UploadTimeout:   time.Second,
			OutputTimeout:   time.Second,
		},
	}

	return NewOpener(Params{
		Logger:     logger,
		Config:     cfg,
		Driver:     driver,
		Locators:   locator.Default(),
		Discoverer: discovery.NewDiscoverer(discovery.Params{Locators: locator.Default(), Logger: logger}),
		Bridge:     bridge.NewBridge(bridge.Params{Logger: logger}),
		Storage:    storage.NewStorage(storage.Params{Logger: logger}),
	})
}

func openSession(t *testing.T, page *scriptedPage) adapters.VoiceSession {
	t.Helper()

	session, err := newTestOpener(t, page).Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(session.Release)

	return session
}

func TestOpenDiscoversCatalog(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	session := openSession(t, page)

	assert.Equal(t, entity.SessionStateDiscovered, session.State())
	assert.Equal(t, "https://voicechanger.io/", session.TargetURL())
	assert.NotEqual(t, uuid.Nil, session.ID())

	effects := session.Effects()
	require.Len(t, effects, 4)

	titles := make([]string, 0, len(effects))
	for i, effect := range effects {
		assert.Equal(t, i, effect.ID)
		titles = append(titles, effect.Title)
	}
	assert.Equal(t, []string{"Anonymous", "Robot", "Cave", "Ogre"}, titles)
	assert.Equal(t, []string{"navigate"}, page.events)
}

func TestOpenNavigationFailure(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	page.navigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	_, err := newTestOpener(t, page).Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNavigationFailed, apperr.CodeOf(err))
	assert.ErrorIs(t, err, page.navigateErr)
}

func TestOpenEmptyCatalog(t *testing.T) {
	page := newScriptedPage(t, `<div><span>nothing here</span></div>`)

	_, err := newTestOpener(t, page).Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscoveryFailed, apperr.CodeOf(err))
}

func TestOpenHoldsDriverExclusively(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	opener := newTestOpener(t, page)

	first, err := opener.Open(context.Background())
	require.NoError(t, err)

	_, err = opener.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

	first.Release()
	first.Release()

	second, err := opener.Open(context.Background())
	require.NoError(t, err)
	second.Release()
}

func TestApplyEffectFromBytes(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	session := openSession(t, page)

	effect, err := session.EffectByTitle("cave")
	require.NoError(t, err)

	payload, err := session.ApplyEffect(context.Background(), entity.AudioFromBytes(audio), effect)
	require.NoError(t, err)

	assert.Equal(t, audio, payload.Data)
	assert.Equal(t, "Cave.mp3", payload.SuggestedName)
	assert.Equal(t, entity.SessionStateSucceeded, session.State())

	assert.Equal(t, 3, page.cssReads)
	assert.Equal(t, 3, page.srcReads)
	assert.Equal(t, 1, page.count("click"))
	assert.Equal(t, 1, page.count("upload"))
	assert.Equal(t, page.index("display:block", 1)+1, page.index("click", 1), "click must follow the third indicator read")
	assert.Equal(t, "fetch:blob:https://voicechanger.io/4f1c", page.events[len(page.events)-1])

	inputs := page.Inputs()
	require.Len(t, inputs, 1)
	_, statErr := os.Stat(inputs[0])
	assert.True(t, os.IsNotExist(statErr), "materialized upload must be removed")
}

func TestApplyEffectFromPath(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	session := openSession(t, page)

	path := filepath.Join(t.TempDir(), "sample.mp3")
	require.NoError(t, os.WriteFile(path, audio, 0o644))

	_, err := session.ApplyEffect(context.Background(), entity.AudioFromPath(path), session.RandomEffect(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, page.Inputs())
}

func TestApplyEffectRejectsForeignEffect(t *testing.T) {
	other := openSession(t, newScriptedPage(t, fiveCards))

	tests := []struct {
		name   string
		effect func(own adapters.VoiceSession) entity.VoiceEffect
	}{
		{
			name:   "effect of another session",
			effect: func(adapters.VoiceSession) entity.VoiceEffect { return other.Effects()[0] },
		},
		{
			name: "forged catalog id",
			effect: func(own adapters.VoiceSession) entity.VoiceEffect {
				forged := own.Effects()[0]
				forged.CatalogID = uuid.New()
				return forged
			},
		},
		{
			name: "swapped title",
			effect: func(own adapters.VoiceSession) entity.VoiceEffect {
				swapped := own.Effects()[0]
				swapped.Title = "Robot"
				return swapped
			},
		},
		{
			name:   "zero value",
			effect: func(adapters.VoiceSession) entity.VoiceEffect { return entity.VoiceEffect{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newScriptedPage(t, fiveCards)
			session := openSession(t, page)

			_, err := session.ApplyEffect(context.Background(), entity.AudioFromBytes(audio), tt.effect(session))
			require.Error(t, err)
			assert.Equal(t, apperr.CodeInvalidEffect, apperr.CodeOf(err))
			assert.Equal(t, entity.SessionStateFailed, session.State())

			assert.Zero(t, page.count("click"))
			assert.Zero(t, page.count("upload"))
			assert.Zero(t, page.Clicks())
		})
	}
}

func TestApplyEffectUploadTimeout(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	page.displays = []string{"none"}

	opener := newTestOpener(t, page)
	opener.deps.Config.SessionConfig.UploadTimeout = 20 * time.Millisecond

	session, err := opener.Open(context.Background())
	require.NoError(t, err)
	defer session.Release()

	_, err = session.ApplyEffect(context.Background(), entity.AudioFromBytes(audio), session.Effects()[0])
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeTimeout))
	assert.Equal(t, entity.SessionStateFailed, session.State())
	assert.Zero(t, page.count("click"))
}

func TestApplyEffectCancelled(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	page.sources = []string{""}
	session := openSession(t, page)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := session.ApplyEffect(ctx, entity.AudioFromBytes(audio), session.Effects()[1])
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeCancelled))
	assert.Equal(t, 1, page.count("click"))
}

func TestApplyEffectRetrievalFailure(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	page.fetchResult = float64(500)
	session := openSession(t, page)

	_, err := session.ApplyEffect(context.Background(), entity.AudioFromBytes(audio), session.Effects()[2])
	require.Error(t, err)
	assert.Equal(t, apperr.CodeRetrievalFailed, apperr.CodeOf(err))
	assert.Equal(t, entity.SessionStateFailed, session.State())

	var statusErr *bridge.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 500, statusErr.Status)
}

func TestApplyEffectOnlyOncePerPage(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	session := openSession(t, page)

	_, err := session.ApplyEffect(context.Background(), entity.AudioFromBytes(audio), session.Effects()[0])
	require.NoError(t, err)

	_, err = session.ApplyEffect(context.Background(), entity.AudioFromBytes(audio), session.Effects()[0])
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
	assert.Equal(t, entity.SessionStateSucceeded, session.State())
	assert.Equal(t, 1, page.count("click"))
}

func TestResetInvalidatesPreviousCatalog(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	session := openSession(t, page)

	old := session.Effects()[0]
	assert.False(t, old.Handle.Stale())

	require.NoError(t, session.Reset(context.Background()))
	assert.Equal(t, entity.SessionStateDiscovered, session.State())
	assert.True(t, old.Handle.Stale())

	_, err := session.ApplyEffect(context.Background(), entity.AudioFromBytes(audio), old)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidEffect, apperr.CodeOf(err))

	require.NoError(t, session.Reset(context.Background()))
	page.cssReads, page.srcReads = 0, 0

	payload, err := session.ApplyEffect(context.Background(), entity.AudioFromBytes(audio), session.Effects()[0])
	require.NoError(t, err)
	assert.Equal(t, audio, payload.Data)
}

func TestApplyEffectRejectsEmptySource(t *testing.T) {
	page := newScriptedPage(t, fiveCards)
	session := openSession(t, page)

	_, err := session.ApplyEffect(context.Background(), entity.AudioSource{}, session.Effects()[0])
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	assert.Zero(t, page.count("upload"))
}

func TestEffectLookups(t *testing.T) {
	session := openSession(t, newScriptedPage(t, fiveCards))

	effect, err := session.Effect(1)
	require.NoError(t, err)
	assert.Equal(t, "Robot", effect.Title)

	_, err = session.Effect(4)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = session.EffectByTitle("Darth Vader")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	titles := map[string]bool{}
	r := rand.New(rand.NewPCG(7, 7))
	for range 50 {
		titles[session.RandomEffect(r).Title] = true
	}
	assert.Len(t, titles, 4)
	for title := range titles {
		assert.NotEmpty(t, strings.TrimSpace(title))
	}
}
