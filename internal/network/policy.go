package network

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Policy decides which weight survives when the same directed pair is
// inserted more than once, e.g. two routes serving the same stop pair.
type Policy string

const (
	// PolicyMinWeight keeps the fastest leg.
	PolicyMinWeight Policy = "min"
	// PolicyLastWrite keeps the most recently inserted weight.
	PolicyLastWrite Policy = "last"
)

// ParsePolicy converts a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyMinWeight, "":
		return PolicyMinWeight, nil
	case PolicyLastWrite:
		return PolicyLastWrite, nil
	default:
		return "", eris.Errorf("network: unknown duplicate policy %q", s)
	}
}
