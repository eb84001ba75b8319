package domain

import "time"

// CaptureSpec tells a browser engine what to load, what to wait for and
// how to print it.
type CaptureSpec struct {
	URL       string
	RequestID string

	// ReadySelector must match an element before the page is printed.
	ReadySelector     string
	ReadyTimeout      time.Duration
	NavigationTimeout time.Duration
	// NetworkIdle is the quiet window with no requests in flight.
	NetworkIdle time.Duration

	PaperWidth      float64 // inches
	PaperHeight     float64 // inches
	Margin          float64 // inches, all four sides
	PrintBackground bool
}
