package payment

import (
	"sync"
)

// MockSheet is a scriptable Sheet for tests and debug builds where no real
// wallet UI is available. Configure exactly one of AuthorizeWith or Cancel to
// have Present fire the corresponding callback immediately, or leave both
// unset and drive the registered callbacks by hand.
type MockSheet struct {
	// Available is returned by CanMakePayments.
	Available bool
	// AuthorizeWith, when non-nil, makes Present fire Authorized with this
	// token.
	AuthorizeWith *Token
	// Cancel, when true, makes Present fire Cancelled.
	Cancel bool
	// PresentErr, when non-nil, is returned by Present without firing
	// anything.
	PresentErr error

	mu        sync.Mutex
	cb        Callbacks
	presented []Request
	closed    []Status
}

// Present records the request, registers callbacks, and fires the scripted
// outcome, if any.
func (m *MockSheet) Present(req Request, cb Callbacks) error {
	if m.PresentErr != nil {
		return m.PresentErr
	}
	m.mu.Lock()
	m.cb = cb
	m.presented = append(m.presented, req)
	m.mu.Unlock()

	switch {
	case m.Cancel:
		cb.Cancelled()
	case m.AuthorizeWith != nil:
		cb.Authorized(*m.AuthorizeWith)
	}
	return nil
}

// Close records the status and completes dismissal immediately.
func (m *MockSheet) Close(status Status) {
	m.mu.Lock()
	m.closed = append(m.closed, status)
	cb := m.cb
	m.mu.Unlock()
	if cb.Dismissed != nil {
		cb.Dismissed()
	}
}

// CanMakePayments reports the configured availability.
func (m *MockSheet) CanMakePayments() bool {
	return m.Available
}

// Callbacks returns the callbacks registered by the last Present, for tests
// that drive the sheet by hand.
func (m *MockSheet) Callbacks() Callbacks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb
}

// Presented returns the requests presented so far.
func (m *MockSheet) Presented() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.presented...)
}

// Closed returns the close statuses requested so far.
func (m *MockSheet) Closed() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Status(nil), m.closed...)
}
