package wdc

// KeyRing reports which content encryption keys the caller holds. Sections
// encrypted with a known key are expected to already be decrypted by the
// archive layer.
type KeyRing interface {
	Known(keyID uint64) bool
}

// StaticKeyRing is a fixed set of key identifiers.
type StaticKeyRing map[uint64]struct{}

// NewStaticKeyRing returns a key ring holding ids.
func NewStaticKeyRing(ids ...uint64) StaticKeyRing {
	kr := make(StaticKeyRing, len(ids))
	for _, id := range ids {
		kr[id] = struct{}{}
	}
	return kr
}

// Known implements KeyRing.
func (kr StaticKeyRing) Known(keyID uint64) bool {
	_, ok := kr[keyID]
	return ok
}
