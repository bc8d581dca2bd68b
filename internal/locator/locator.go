// Package locator holds the selectors that identify the parts of the voicechanger.io page.
package locator

const (
	DefaultEffectContainer = "body > section:nth-of-type(4) > div"
	DefaultEffectCards     = DefaultEffectContainer + " > *"
	DefaultEffectTitle     = "h2"
	DefaultEffectTag       = "div"
	DefaultEffectHandler   = "onclick"
	DefaultFileInput       = "body > section:nth-of-type(3) > div:nth-of-type(1) > div:nth-of-type(1) > input"
	DefaultUploadSuccess   = "#audio-load-success"
	DefaultOutputAudio     = "#output-audio-tag"

	// HiddenDisplay is the display value of the upload indicator until the upload is acknowledged.
	HiddenDisplay = "none"
	DisplayProp   = "display"
	OutputSrcAttr = "src"
	// TransformPattern extracts the effect token from a card's inline handler.
	TransformPattern = `loadTransform\(event, '(.+?)'\)`
)

// Catalog is the fixed set of locators the session works with.
type Catalog struct {
	EffectContainer string
	// EffectCards matches the direct children of the voice-effect container.
	EffectCards string
	// EffectTitle is looked up inside a card.
	EffectTitle string
	// EffectTag is the only tag name accepted for a card.
	EffectTag string
	// EffectHandler is the attribute carrying the inline loadTransform call.
	EffectHandler string
	FileInput     string
	UploadSuccess string
	OutputAudio   string
}

func Default() Catalog {
	return Catalog{
		EffectContainer: DefaultEffectContainer,
		EffectCards:     DefaultEffectCards,
		EffectTitle:     DefaultEffectTitle,
		EffectTag:       DefaultEffectTag,
		EffectHandler:   DefaultEffectHandler,
		FileInput:       DefaultFileInput,
		UploadSuccess:   DefaultUploadSuccess,
		OutputAudio:     DefaultOutputAudio,
	}
}
