package recognition

import "context"

// StaticRecognizer returns fixed output for every file. It backs the
// "static" backend used for demos and end-to-end tests.
type StaticRecognizer struct {
	Text string
	Err  error
}

// NewStaticRecognizer returns a recognizer that always yields text.
func NewStaticRecognizer(text string) *StaticRecognizer {
	return &StaticRecognizer{Text: text}
}

// Recognize implements Recognizer.
func (s *StaticRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", NewRecognitionError("static", path, s.Err)
	}
	text, err := NormalizeTranscript(s.Text)
	if err != nil {
		return "", NewRecognitionError("static", path, err)
	}
	return text, nil
}
