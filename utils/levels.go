package utils

// Adventurer rank ladder. Thresholds are the minimum experience for each
// rank, ascending.
type LevelThreshold struct {
	MinXP uint
	Level string
}

var LevelThresholds = []LevelThreshold{
	{0, "F"},
	{100, "E"},
	{300, "D"},
	{800, "C"},
	{2000, "B"},
	{5000, "A"},
	{12000, "S"},
	{30000, "SSS"},
}

// TitleXP is the experience floor at which a held title replaces the rank.
const TitleXP = 50000

// CalculateLevel maps experience to a rank, honoring a title override for
// veterans past TitleXP.
func CalculateLevel(xp uint, titleName string) string {
	if xp >= TitleXP && titleName != "" {
		return titleName
	}
	level := "F"
	for _, t := range LevelThresholds {
		if xp >= t.MinXP {
			level = t.Level
		}
	}
	return level
}

// LevelIndex returns the position of a rank in the ladder, or -1 for an
// unknown label (titles included).
func LevelIndex(level string) int {
	for i, t := range LevelThresholds {
		if t.Level == level {
			return i
		}
	}
	return -1
}

// IsValidLevel reports whether level names a rank on the ladder.
func IsValidLevel(level string) bool {
	return LevelIndex(level) >= 0
}

// NextLevelXP returns the experience still missing until the next rank, or
// 0 when already at the top.
func NextLevelXP(xp uint) uint {
	for _, t := range LevelThresholds {
		if xp < t.MinXP {
			return t.MinXP - xp
		}
	}
	return 0
}
