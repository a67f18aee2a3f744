package marketplace

import (
	"crypto/rand"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// programID anchors every derived identifier to this protocol. Two deployments
// sharing a database cannot collide on record keys or capability addresses.
var programID = func() [32]byte {
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256([]byte("nftmarket/marketplace/v1")))
	return id
}()

// Proof is the unforgeable companion of a capability address. Only a Deriver
// can mint one, and the deriver is owned by the engine and never exposed, so
// external callers cannot sign custody operations on behalf of a listing or
// bid. The digest is never persisted; proofs live only on the call stack.
type Proof struct {
	digest [32]byte
}

// Deriver computes deterministic capability addresses from a domain tag and
// parent identity. Addresses are stable across engine instances (they depend
// only on the inputs and the program identity); proofs are bound to the
// deriver instance that issued them.
type Deriver struct {
	seed [32]byte
}

// NewDeriver creates a deriver with a fresh proof seed.
func NewDeriver() (*Deriver, error) {
	d := &Deriver{}
	if _, err := rand.Read(d.seed[:]); err != nil {
		return nil, err
	}
	return d, nil
}

// DeriveID computes the deterministic 32-byte record identifier for the given
// domain tag and parent material.
func DeriveID(tag string, parents ...[]byte) [32]byte {
	material := make([][]byte, 0, len(parents)+2)
	material = append(material, []byte(tag))
	material = append(material, parents...)
	material = append(material, programID[:])
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(material...))
	return id
}

// Derive computes the capability address for the given domain tag and parent
// material together with a proof of authority over it. No private key exists
// for the address; the proof is the only way to act as it.
func (d *Deriver) Derive(tag string, parents ...[]byte) ([20]byte, Proof) {
	id := DeriveID(tag, parents...)
	var addr [20]byte
	copy(addr[:], id[12:])
	return addr, d.prove(addr)
}

func (d *Deriver) prove(addr [20]byte) Proof {
	var p Proof
	copy(p.digest[:], ethcrypto.Keccak256(d.seed[:], addr[:]))
	return p
}

// Verify reports whether the proof grants authority over the address.
func (d *Deriver) Verify(addr [20]byte, p Proof) bool {
	return d != nil && d.prove(addr).digest == p.digest
}
