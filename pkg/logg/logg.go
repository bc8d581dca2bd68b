package logg

// Structured log field keys shared by every layer.
const (
	Layer     = "layer"
	Operation = "op"
	SessionID = "session_id"
	CatalogID = "catalog_id"
	EffectID  = "effect_id"
	Effect    = "effect"
	URL       = "url"
	Selector  = "selector"
	Path      = "path"
	State     = "state"
	Attempt   = "attempt"
)
