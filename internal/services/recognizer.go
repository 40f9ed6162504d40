package services

import (
	"context"
)

// NoTextPlaceholder is returned when the recognition backend finds no text
// in the image. Recognition never fails a request just because the image
// contains nothing readable.
const NoTextPlaceholder = "No text detected."

// Recognizer converts a staged image file into extracted text
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}
