// File: pool/growth.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"fmt"
	"strings"
)

// GrowthMode selects how a pool sizes new blobs once the free list runs dry.
// The zero value is GrowFast.
type GrowthMode int

const (
	// GrowFast sizes the k-th blob at ElementCount*(k+1) blocks.
	GrowFast GrowthMode = iota
	// GrowSlow sizes every blob at ElementCount blocks.
	GrowSlow
	// GrowNone allows only the initial blob.
	GrowNone
)

func (g GrowthMode) String() string {
	switch g {
	case GrowNone:
		return "none"
	case GrowFast:
		return "fast"
	case GrowSlow:
		return "slow"
	default:
		return fmt.Sprintf("GrowthMode(%d)", int(g))
	}
}

func (g GrowthMode) valid() bool {
	return g >= GrowFast && g <= GrowNone
}

// ParseGrowthMode accepts "none", "fast" or "slow" in any case.
func ParseGrowthMode(s string) (GrowthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return GrowNone, nil
	case "fast":
		return GrowFast, nil
	case "slow":
		return GrowSlow, nil
	}
	return 0, fmt.Errorf("unknown growth mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g GrowthMode) MarshalText() ([]byte, error) {
	if !g.valid() {
		return nil, fmt.Errorf("unknown growth mode %d", int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GrowthMode) UnmarshalText(b []byte) error {
	m, err := ParseGrowthMode(string(b))
	if err != nil {
		return err
	}
	*g = m
	return nil
}

// blobBlocks returns the block count of the blob with index k, or false when
// the policy refuses to create it.
func (g GrowthMode) blobBlocks(base, k int) (int, bool) {
	switch g {
	case GrowFast:
		return base * (k + 1), true
	case GrowSlow:
		return base, true
	default:
		if k == 0 {
			return base, true
		}
		return 0, false
	}
}
