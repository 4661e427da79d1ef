package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned by NewRecognizer for unusable settings.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrInvalidResponse is returned when the API answers without usable text.
	ErrInvalidResponse = errors.New("invalid response from gemini")

	// ErrContentBlocked is returned when safety filters stop the response.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrUnsupportedMedia is returned for files that are not audio or too
	// large to send inline.
	ErrUnsupportedMedia = errors.New("unsupported media")
)
