// Package ui holds presentation state shared by the server-rendered views.
package ui

import (
	"errors"
	"sync"
)

// ModalState is the lifecycle position of a modal dialog.
type ModalState int

const (
	ModalClosed ModalState = iota
	ModalOpen
	ModalBusy
)

func (s ModalState) String() string {
	switch s {
	case ModalOpen:
		return "open"
	case ModalBusy:
		return "busy"
	default:
		return "closed"
	}
}

// DismissReason records how the user asked to close a modal.
type DismissReason string

const (
	DismissEscape      DismissReason = "escape"
	DismissBackdrop    DismissReason = "backdrop"
	DismissCloseButton DismissReason = "close"
)

// ParseDismissReason maps a request value to a reason, defaulting to the close button.
func ParseDismissReason(v string) DismissReason {
	switch DismissReason(v) {
	case DismissEscape, DismissBackdrop:
		return DismissReason(v)
	default:
		return DismissCloseButton
	}
}

var (
	// ErrModalBusy is returned when a modal is submitting and cannot change state.
	ErrModalBusy = errors.New("ui: modal is busy")
	// ErrModalClosed is returned when submitting a modal that is not open.
	ErrModalClosed = errors.New("ui: modal is not open")
)

// Modal is a dialog moving through closed, open and busy. Dismissal and a
// second submit are refused while busy.
type Modal struct {
	mu    sync.Mutex
	state ModalState
}

func (m *Modal) State() ModalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open shows the modal. Opening an open modal is a no-op.
func (m *Modal) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == ModalBusy {
		return ErrModalBusy
	}
	m.state = ModalOpen
	return nil
}

// Dismiss closes the modal unless it is busy.
func (m *Modal) Dismiss(DismissReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == ModalBusy {
		return ErrModalBusy
	}
	m.state = ModalClosed
	return nil
}

// Begin marks the modal busy for a submit.
func (m *Modal) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case ModalBusy:
		return ErrModalBusy
	case ModalClosed:
		return ErrModalClosed
	}
	m.state = ModalBusy
	return nil
}

// Finish ends a submit. A successful submit closes the modal, a failed one
// leaves it open for another attempt.
func (m *Modal) Finish(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ModalBusy {
		return
	}
	if success {
		m.state = ModalClosed
		return
	}
	m.state = ModalOpen
}
