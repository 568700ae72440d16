package ui

import "time"

// Severity is the colour of a snackbar.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

const (
	// AuthAutoHide is how long snackbars stay on the sign-in pages.
	AuthAutoHide = 3 * time.Second
	// GalleryAutoHide is how long snackbars stay on the gallery.
	GalleryAutoHide = 5 * time.Second
)

// Snackbar is a transient message shown at the bottom of a page.
type Snackbar struct {
	Message  string
	Severity Severity
	AutoHide time.Duration
}

func Success(message string, autoHide time.Duration) Snackbar {
	return Snackbar{Message: message, Severity: SeveritySuccess, AutoHide: autoHide}
}

func Error(message string, autoHide time.Duration) Snackbar {
	return Snackbar{Message: message, Severity: SeverityError, AutoHide: autoHide}
}

func Info(message string, autoHide time.Duration) Snackbar {
	return Snackbar{Message: message, Severity: SeverityInfo, AutoHide: autoHide}
}

// AutoHideMillis is the dismissal delay in milliseconds for client scripts.
func (s Snackbar) AutoHideMillis() int64 {
	return s.AutoHide.Milliseconds()
}
