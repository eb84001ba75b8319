package domain

import "errors"

// Missing-input and generation errors.
var (
	ErrSourceNotFound    = errors.New("source HTML not found")
	ErrInvalidLanguage   = errors.New("invalid language code")
	ErrServerStart       = errors.New("static file server failed to start")
	ErrBrowserLaunch     = errors.New("failed to launch browser")
	ErrNavigation        = errors.New("navigation failed")
	ErrReadyTimeout      = errors.New("readiness marker did not appear in time")
	ErrPDFCapture        = errors.New("PDF capture failed")
	ErrWriteOutput       = errors.New("failed to write PDF output")
	ErrRenderPanicked    = errors.New("render panicked")
	ErrRenderCancelled   = errors.New("render cancelled")
	ErrUnsupportedEngine = errors.New("unsupported browser engine")
)

// Verification errors, kept apart from generation errors.
var (
	ErrVerifierUnavailable = errors.New("page count tool not available")
	ErrPageCountUnparsable = errors.New("could not determine page count")
	ErrPageCountMismatch   = errors.New("page count mismatch")
)

// IsVerificationError reports whether err came from the page-count verifier.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrVerifierUnavailable) ||
		errors.Is(err, ErrPageCountUnparsable) ||
		errors.Is(err, ErrPageCountMismatch)
}
