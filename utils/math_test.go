package utils

import "testing"

func TestRoundFloat(t *testing.T) {
	cases := []struct {
		val       float64
		precision int
		want      float64
	}{
		{1.754, 2, 1.75},
		{1.756, 2, 1.76},
		{2.4999, 0, 2},
		{0.1 + 0.2, 2, 0.3},
	}
	for _, c := range cases {
		if got := RoundFloat(c.val, c.precision); got != c.want {
			t.Fatalf("RoundFloat(%v, %d) = %v, want %v", c.val, c.precision, got, c.want)
		}
	}
}
