package enums

import (
	"fmt"
	"slices"
)

// member parses raw as one of set. kind names the enum in the error and
// match is the already normalized form of raw.
func member[T ~string](set []T, kind, raw, match string) (T, error) {
	if v := T(match); slices.Contains(set, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
