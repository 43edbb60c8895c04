package service

import "time"

// Clock supplies the engine's notion of now. Every timestamp the
// engine owns (modified_at, deleted_at, decision times) comes from
// here, so tests can order writes deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func SystemClock() Clock {
	return systemClock{}
}
