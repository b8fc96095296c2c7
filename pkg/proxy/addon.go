package proxy

import "errors"

// RequestHook is called after the full request body is read, before
// forwarding. Mutations to the captured request are applied to the
// outgoing request.
type RequestHook interface {
	OnRequest(ex *Exchange)
}

// ResponseHook is called after the full response body is read, before
// returning to the client. Mutations to the captured response are
// applied to the outgoing response.
type ResponseHook interface {
	OnResponse(ex *Exchange)
}

// CompleteHook is called when an exchange finishes successfully.
type CompleteHook interface {
	OnComplete(ex *Exchange)
}

// ErrorHook is called when an error occurs during proxying.
type ErrorHook interface {
	OnError(ex *Exchange, err error)
}

// FinalizeHook is called exactly once at proxy teardown, after the
// listener has stopped and every in-flight exchange has completed. A
// well-behaved host never fires exchange hooks after finalize.
type FinalizeHook interface {
	Finalize() error
}

// Addon is a marker interface; addons implement whichever hook interfaces they need.
type Addon interface{}

// AddonManager dispatches exchange lifecycle events to registered addons in order.
type AddonManager struct {
	addons []Addon
}

// NewAddonManager returns an empty AddonManager.
func NewAddonManager() *AddonManager {
	return &AddonManager{}
}

// Add registers one or more addons.
func (m *AddonManager) Add(addons ...Addon) {
	m.addons = append(m.addons, addons...)
}

// FireRequest calls OnRequest on every addon that implements RequestHook.
func (m *AddonManager) FireRequest(ex *Exchange) {
	for _, a := range m.addons {
		if h, ok := a.(RequestHook); ok {
			h.OnRequest(ex)
		}
	}
}

// FireResponse calls OnResponse on every addon that implements ResponseHook.
func (m *AddonManager) FireResponse(ex *Exchange) {
	for _, a := range m.addons {
		if h, ok := a.(ResponseHook); ok {
			h.OnResponse(ex)
		}
	}
}

// FireComplete calls OnComplete on every addon that implements CompleteHook.
func (m *AddonManager) FireComplete(ex *Exchange) {
	for _, a := range m.addons {
		if h, ok := a.(CompleteHook); ok {
			h.OnComplete(ex)
		}
	}
}

// FireError calls OnError on every addon that implements ErrorHook.
func (m *AddonManager) FireError(ex *Exchange, err error) {
	for _, a := range m.addons {
		if h, ok := a.(ErrorHook); ok {
			h.OnError(ex, err)
		}
	}
}

// FireFinalize calls Finalize on every addon that implements
// FinalizeHook, in registration order, and joins any errors. Every
// addon gets its finalize call even if an earlier one fails.
func (m *AddonManager) FireFinalize() error {
	var errs []error
	for _, a := range m.addons {
		if h, ok := a.(FinalizeHook); ok {
			if err := h.Finalize(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
