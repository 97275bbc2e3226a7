package trackcode

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Format(t *testing.T) {
	re := regexp.MustCompile(`^EBF_(\d{4})$`)
	for i := 0; i < 1000; i++ {
		code := New()
		m := re.FindStringSubmatch(code)
		require.NotNil(t, m, "bad code %q", code)

		n, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 10000)
	}
}
