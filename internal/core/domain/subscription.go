package domain

import "time"

// PushSubscription is one registered client device endpoint. Endpoint is the
// unique key; Keys carries the opaque encryption material handed over at
// registration.
type PushSubscription struct {
	Endpoint  string            `json:"endpoint"`
	Keys      map[string]string `json:"keys"`
	CreatedAt time.Time         `json:"created_at"`
}
