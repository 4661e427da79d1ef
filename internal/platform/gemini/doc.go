// Package gemini provides an implementation of the recognition.Recognizer
// interface that uses Google's Gemini API to transcribe audio files.
//
// This package is an infrastructure adapter: it translates a local audio file
// into an inline-data request for the generative model and maps the response,
// including safety blocks and empty candidates, onto recognition errors.
// Transient API failures are retried with exponential backoff.
package gemini
