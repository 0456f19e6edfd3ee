package gin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		0:                                     "0s",
		42 * time.Second:                      "42s",
		12*time.Minute + 5*time.Second:        "12m 5s",
		3*time.Hour + 7*time.Minute:           "3h 7m",
		50*time.Hour + 15*time.Minute + 9*time.Second: "2d 2h 15m",
	}
	for d, want := range cases {
		assert.Equal(t, want, formatUptime(d), d.String())
	}
}
