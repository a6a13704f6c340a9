package outbound

import "time"

// Clock supplies the current time to lifecycle derivation
type Clock interface {
	Now() time.Time
}
