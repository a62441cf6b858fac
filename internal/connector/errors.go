package connector

import "fmt"

// SourceError is returned when a connector responds with a non-retryable
// 4xx status, or exhausts its retry budget against a 5xx/network error.
type SourceError struct {
	Status int
	Body   string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("connector: source error: status=%d body=%q", e.Status, e.Body)
}
