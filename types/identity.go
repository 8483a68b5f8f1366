package types

import (
	"errors"
	"strconv"
	"strings"
)

// MaxIdentityLen bounds the length of an Identity.
const MaxIdentityLen = 128

// Identity errors.
var (
	ErrEmptyIdentity   = errors.New("identity: empty")
	ErrIdentityTooLong = errors.New("identity: too long")
	ErrIdentityInvalid = errors.New("identity: contains whitespace or control characters")
)

// Identity is an opaque principal on the host ledger (an account or contract
// address). Drip compares identities byte-for-byte.
type Identity string

// String implements fmt.Stringer.
func (i Identity) String() string { return string(i) }

// IsZero reports whether the identity is empty.
func (i Identity) IsZero() bool { return i == "" }

// Validate checks that the identity is non-empty, bounded and printable.
func (i Identity) Validate() error {
	if i == "" {
		return ErrEmptyIdentity
	}
	if len(i) > MaxIdentityLen {
		return ErrIdentityTooLong
	}
	if strings.ContainsFunc(string(i), func(r rune) bool {
		return r <= ' ' || r == 0x7f
	}) {
		return ErrIdentityInvalid
	}
	return nil
}

// Height is a block height on the host ledger. It is the only clock Drip
// uses for accrual.
type Height uint64

// String implements fmt.Stringer.
func (h Height) String() string { return strconv.FormatUint(uint64(h), 10) }

// Add returns h+n.
func (h Height) Add(n uint64) Height { return h + Height(n) }

// Since returns h-earlier, or zero if earlier is after h.
func (h Height) Since(earlier Height) uint64 {
	if earlier >= h {
		return 0
	}
	return uint64(h - earlier)
}
