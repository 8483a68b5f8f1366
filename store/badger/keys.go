package badger

import (
	"encoding/binary"

	"github.com/xraph/drip/types"
)

// Key layout. Numeric ids are big-endian so prefix scans return them in
// ascending order.
var (
	prefixStream    = []byte("stream/")
	prefixAggregate = []byte("aggregate/")
	prefixRole      = []byte("role/")
	prefixPending   = []byte("pending/")
	prefixEvent     = []byte("event/")

	keyGlobals       = []byte("globals")
	keySchemaVersion = []byte("meta/schema")
)

const schemaVersion = "1"

func uintKey(prefix []byte, n uint64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], n)
	return k
}

func identityKey(prefix []byte, identity types.Identity) []byte {
	k := make([]byte, 0, len(prefix)+len(identity))
	k = append(k, prefix...)
	return append(k, identity...)
}

func streamKey(id uint64) []byte                  { return uintKey(prefixStream, id) }
func eventKey(seq uint64) []byte                  { return uintKey(prefixEvent, seq) }
func aggregateKey(identity types.Identity) []byte { return identityKey(prefixAggregate, identity) }
func roleKey(identity types.Identity) []byte      { return identityKey(prefixRole, identity) }
func pendingKey(identity types.Identity) []byte   { return identityKey(prefixPending, identity) }
