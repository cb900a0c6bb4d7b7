package hub

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts record id generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// shortIDLen is the length of generated record ids.
const shortIDLen = 10

// ShortIDGenerator produces short random tokens cut from a UUID.
type ShortIDGenerator struct{}

func (ShortIDGenerator) New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortIDLen]
}

// millis converts t to epoch milliseconds, the timestamp unit of every document.
func millis(t time.Time) int64 { return t.UnixMilli() }
