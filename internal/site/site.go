// Package site selects and drives the handler that knows how to read and act
// on the page currently shown in the tab.
package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Page status values reported in Context.Status.
const (
	StatusReady         = "ready"
	StatusLoginRequired = "login_required"
	StatusLoading       = "loading"
	StatusError         = "error"
)

// Options tunes a collection pass.
type Options struct {
	// TextLimit bounds page text excerpts (generic handler).
	TextLimit int `json:"textLimit,omitempty"`
	// MessageLimit bounds the message tail (chat handler).
	MessageLimit int `json:"messageLimit,omitempty"`
}

// Context is one snapshot of what the page shows. Collection never fails:
// problems are reported in Status and inside Details.
type Context struct {
	Site        string    `json:"site"`
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	CollectedAt time.Time `json:"collectedAt"`
	Status      string    `json:"status"`
	LoginCode   string    `json:"loginCode,omitempty"`
	Details     any       `json:"details,omitempty"`
}

// Result is the uniform outcome of RunAction.
type Result struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler is the capability surface every site variant exposes.
type Handler interface {
	Name() string
	CollectContext(ctx context.Context, opts Options) Context
	// ObserveContextChanges calls onChange with a reason whenever the collected
	// context materially changes. The returned dispose func is idempotent.
	ObserveContextChanges(onChange func(reason string)) (dispose func())
	RunAction(ctx context.Context, action string, args map[string]any) Result
}

// Error codes shared by all handlers.
const (
	ErrInvalidRequest = "invalid_request"
	ErrUnknownAction  = "unknown_action"
	ErrInternal       = "internal_error"
)

// ActionError is a structured action failure. Code doubles as the reason
// reported to callers.
type ActionError struct {
	Code    string
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewActionError creates an ActionError.
func NewActionError(code, msg string, details map[string]any) *ActionError {
	return &ActionError{Code: code, Message: msg, Details: details}
}

// NewInvalidRequest creates an invalid_request error.
func NewInvalidRequest(msg string) *ActionError {
	return NewActionError(ErrInvalidRequest, msg, nil)
}

// NewUnknownAction creates an unknown_action error.
func NewUnknownAction(handler, action string) *ActionError {
	return NewActionError(ErrUnknownAction,
		fmt.Sprintf("%s does not support action %q", handler, action),
		map[string]any{"action": action})
}

// OK wraps a successful result.
func OK(v any) Result {
	return Result{OK: true, Result: v}
}

// Failure converts err into a failed Result. ActionErrors keep their code and
// details; anything else becomes internal_error.
func Failure(err error) Result {
	var ae *ActionError
	if !errors.As(err, &ae) {
		ae = NewActionError(ErrInternal, err.Error(), nil)
	}
	details := make(map[string]any, len(ae.Details)+2)
	for k, v := range ae.Details {
		details[k] = v
	}
	details["reason"] = ae.Code
	if ae.Message != "" {
		details["message"] = ae.Message
	}
	return Result{OK: false, Result: details, Error: ae.Code}
}

// Recover turns a panic inside an action into an internal_error result.
func Recover(res *Result) {
	if r := recover(); r != nil {
		*res = Failure(fmt.Errorf("action panicked: %v", r))
	}
}

// Decode unmarshals loosely typed action arguments into T.
func Decode[T any](args map[string]any) (T, error) {
	var result T
	if args == nil {
		return result, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return result, NewInvalidRequest(fmt.Sprintf("marshal args: %v", err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, NewInvalidRequest(fmt.Sprintf("unmarshal args: %v", err))
	}
	return result, nil
}
