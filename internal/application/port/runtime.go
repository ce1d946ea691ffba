package port

import "time"

// Clock supplies the current time. Injected so that completion timestamps and
// delegation-window evaluation are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces opaque unique identifiers for new entities
type IDGenerator interface {
	NewID() string
}
