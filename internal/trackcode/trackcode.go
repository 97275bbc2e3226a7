package trackcode

import (
	"fmt"
	"math/rand/v2"
)

// Prefix ставится перед номером заявки в публичном коде.
const Prefix = "EBF"

// New returns a code of the form EBF_NNNN with NNNN uniform over [0, 10000).
// Pure draw: no state, no uniqueness guarantee — the caller decides what to
// do about collisions.
func New() string {
	return fmt.Sprintf("%s_%04d", Prefix, rand.IntN(10000))
}
