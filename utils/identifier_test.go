package utils

import "testing"

func TestRandomIdentifier_Shape(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := randomIdentifier()
		if len(id) != 6 {
			t.Fatalf("identifier must be 6 digits, got %q", id)
		}
		if id[0] == '0' {
			t.Fatalf("identifier must not start with zero, got %q", id)
		}
		for _, c := range id {
			if c < '0' || c > '9' {
				t.Fatalf("identifier must be numeric, got %q", id)
			}
		}
	}
}
