package submissions

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewReference generates a human-shareable reference code of the form
// IEA-<base36 unix millis>-<5 random base36 chars>, upper-cased.
func NewReference(now time.Time) string {
	var suffix [5]byte
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return strings.ToUpper("IEA-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + string(suffix[:]))
}
