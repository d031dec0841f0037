package orm

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NextID returns a 50-character key: a 15-digit millisecond timestamp, a
// random uuid in hex and a "000" suffix. Keys sort by creation time.
func NextID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%015d%s000", time.Now().UnixMilli(), hex)
}

// NextIDDefault is a DefaultFunc producer for string primary keys.
func NextIDDefault() any { return NextID() }

// Now returns the current time as fractional Unix seconds, the format float
// timestamp columns are stored in.
func Now() any {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
