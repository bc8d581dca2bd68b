package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaSession  = "session_id"
	MetaEffectID = "effect_id"
	MetaSelector = "selector"
	MetaURL      = "url"
	MetaStatus   = "status"
	MetaWaited   = "waited"
	MetaState    = "state"
	MetaPath     = "path"

	StageBrowser    = "browser"
	StageNavigation = "navigation"
	StageDiscovery  = "discovery"
	StageUpload     = "upload"
	StageEffect     = "effect"
	StageOutput     = "output"
	StageRetrieval  = "retrieval"
	StageStorage    = "storage"

	CodeInternal         = "internal"
	CodeInvalidArgument  = "invalid_argument"
	CodeNotFound         = "not_found"
	CodeTimeout          = "timeout"
	CodeCancelled        = "cancelled"
	CodeBrowserNotReady  = "browser_not_ready"
	CodeActionFailed     = "action_failed"
	CodeNavigationFailed = "navigation_failed"
	CodeDiscoveryFailed  = "discovery_failed"
	CodeInvalidEffect    = "invalid_effect"
	CodeInvalidState     = "invalid_state"
	CodeStaleElement     = "stale_element"
	CodeRetrievalFailed  = "retrieval_failed"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

func NotFoundError(op string, err error) error {
	return Wrap(op, CodeNotFound, err, map[string]any{
		MetaReason: "not_found",
	})
}

// CodeOf returns the code of the outermost *Error in the chain, or "" when there is none.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return ""
}

// Is reports whether any *Error in the chain carries code.
// Wrapping layers often re-code an inner failure, so the whole chain is searched.
func Is(err error, code string) bool {
	for err != nil {
		var appErr *Error
		if !errors.As(err, &appErr) {
			return false
		}

		if appErr.Code == code {
			return true
		}

		err = appErr.Err
	}

	return false
}

// Meta returns the metadata value stored under key by the first *Error in the chain that has it.
func Meta(err error, key string) (any, bool) {
	for err != nil {
		var appErr *Error
		if !errors.As(err, &appErr) {
			return nil, false
		}

		if v, ok := appErr.Metadata[key]; ok {
			return v, true
		}

		err = appErr.Err
	}

	return nil, false
}
