package services

import "time"

// Clock is injected wherever lifecycle decisions depend on wall-clock time,
// so the 24-hour cancellation threshold is testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func NewRealClock() Clock { return realClock{} }
