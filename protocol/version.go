// Package protocol converts the version specific JSON results of bitcoind
// into the canonical types of package model.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Version identifies the response shapes of a bitcoind major release.
type Version uint32

const (
	// V28 is bitcoind 28.x. Verbose headers and blocks carry no target.
	V28 Version = 28

	// V29 is bitcoind 29.x. Verbose headers and blocks report target.
	V29 Version = 29

	// V30 is bitcoind 30.x. Verbose blocks additionally report a coinbase
	// transaction summary.
	V30 Version = 30

	// Latest is the newest supported version.
	Latest = V30
)

// Versions returns every supported version, oldest first.
func Versions() []Version {
	return []Version{V28, V29, V30}
}

// String returns the version as "v<major>".
func (v Version) String() string {
	return fmt.Sprintf("v%d", uint32(v))
}

// IsValid returns true if v is a supported version.
func (v Version) IsValid() bool {
	switch v {
	case V28, V29, V30:
		return true
	default:
		return false
	}
}

// ParseVersion parses a version given as "29", "v29" or "29.0".
func ParseVersion(s string) (Version, error) {
	str := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v")
	major, _, _ := strings.Cut(str, ".")

	n, err := strconv.ParseUint(major, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid protocol version %q: %w", s, err)
	}

	v := Version(n)
	if !v.IsValid() {
		return 0, fmt.Errorf("unsupported protocol version %q, "+
			"supported are %v", s, Versions())
	}

	return v, nil
}

// FromNodeVersion maps the numeric version reported by getnetworkinfo, such
// as 290100, to a Version. Releases newer than Latest are treated as Latest.
func FromNodeVersion(nodeVersion uint32) (Version, error) {
	major := Version(nodeVersion / 10000)

	switch {
	case major < V28:
		return 0, fmt.Errorf("node version %d is older than the "+
			"oldest supported version %v", nodeVersion, V28)

	case major > Latest:
		return Latest, nil

	default:
		return major, nil
	}
}
