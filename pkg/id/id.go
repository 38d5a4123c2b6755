// Package id issues run identifiers.
package id

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDs minted in the same millisecond keep increasing.
var (
	mu   sync.Mutex
	mono = ulid.Monotonic(rand.Reader, 0)
)

// New returns a ULID string for the current time. Run IDs sort by
// creation time, so listing runs newest first is a string sort.
func New() string {
	return At(time.Now())
}

// At returns a ULID stamped with t.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Time returns the creation time encoded in a run ID.
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("run id %q: %w", s, err)
	}
	return ulid.Time(id.Time()).UTC(), nil
}

// Valid reports whether s is a well formed run ID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
