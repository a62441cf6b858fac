package schemadsl

import "github.com/antzucaro/matchr"

// suggestThreshold is the minimum Jaro-Winkler similarity for an undeclared
// reference to be worth suggesting a fix for. Below this, silence is more
// useful than a wrong guess.
const suggestThreshold = 0.60

// closestLabel returns the declared label most similar to want by
// Jaro-Winkler string similarity, or "" if none clears suggestThreshold.
func closestLabel(want string, declared []string) string {
	return closest(want, declared)
}

// closestType returns the declared relationship type most similar to want,
// or "" if none clears suggestThreshold.
func closestType(want string, declared []string) string {
	return closest(want, declared)
}

func closest(want string, candidates []string) string {
	var best string
	var bestScore float64
	for _, c := range candidates {
		if c == want {
			continue
		}
		score := matchr.JaroWinkler(want, c, false)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if bestScore < suggestThreshold {
		return ""
	}
	return best
}
