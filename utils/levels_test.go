package utils

import "testing"

func TestCalculateLevel_Ladder(t *testing.T) {
	cases := []struct {
		xp   uint
		want string
	}{
		{0, "F"},
		{99, "F"},
		{100, "E"},
		{299, "E"},
		{300, "D"},
		{800, "C"},
		{2000, "B"},
		{5000, "A"},
		{12000, "S"},
		{30000, "SSS"},
		{49999, "SSS"},
	}
	for _, c := range cases {
		if got := CalculateLevel(c.xp, ""); got != c.want {
			t.Fatalf("xp %d: expected %s, got %s", c.xp, c.want, got)
		}
	}
}

func TestCalculateLevel_TitleOverride(t *testing.T) {
	if got := CalculateLevel(50000, "龙之勇者"); got != "龙之勇者" {
		t.Fatalf("expected title override, got %s", got)
	}
	// Below the threshold the title is ignored.
	if got := CalculateLevel(49999, "龙之勇者"); got != "SSS" {
		t.Fatalf("expected SSS below threshold, got %s", got)
	}
	// Without a title the rank stays at the top of the ladder.
	if got := CalculateLevel(60000, ""); got != "SSS" {
		t.Fatalf("expected SSS without title, got %s", got)
	}
}

func TestLevelIndex(t *testing.T) {
	if LevelIndex("F") != 0 {
		t.Fatal("F should be index 0")
	}
	if LevelIndex("SSS") != len(LevelThresholds)-1 {
		t.Fatal("SSS should be the last index")
	}
	if LevelIndex("龙之勇者") != -1 {
		t.Fatal("titles are not ladder ranks")
	}
}

func TestIsValidLevel(t *testing.T) {
	for _, th := range LevelThresholds {
		if !IsValidLevel(th.Level) {
			t.Fatalf("%s should be valid", th.Level)
		}
	}
	if IsValidLevel("Z") {
		t.Fatal("Z is not on the ladder")
	}
}

func TestNextLevelXP(t *testing.T) {
	if got := NextLevelXP(0); got != 100 {
		t.Fatalf("expected 100 to next rank from 0, got %d", got)
	}
	if got := NextLevelXP(250); got != 50 {
		t.Fatalf("expected 50 to next rank from 250, got %d", got)
	}
	if got := NextLevelXP(30000); got != 0 {
		t.Fatalf("expected 0 at the top, got %d", got)
	}
}
