package state

// Raw key prefixes. Every key is keccak256-hashed before it reaches the
// backing store so record kinds cannot collide.
var (
	accountPrefix     = []byte("account:")
	marketplacePrefix = []byte("marketplace:")
	listingPrefix     = []byte("listing:")
	bidPrefix         = []byte("bid:")
	vaultPrefix       = []byte("vault:")
	holdingPrefix     = []byte("holding:")
	assetMetaPrefix   = []byte("asset-meta:")
)
