package contract

import _ "embed"

// DefaultPack contains the embedded pinned contract pack. The document is
// produced and versioned outside this repository; it is treated as a
// read-only input.
//
//go:embed contract_pack.json
var DefaultPack []byte

// Pack returns a copy of the embedded contract pack bytes so callers
// cannot mutate the embedded document.
func Pack() []byte {
	return append([]byte(nil), DefaultPack...)
}

// Default loads the registry from the embedded pack.
func Default() (*Registry, error) {
	return Load(DefaultPack)
}

// MustDefault loads the embedded pack and panics on error. Intended for
// tests and process bootstrap where a broken embedded pack is unrecoverable.
func MustDefault() *Registry {
	reg, err := Default()
	if err != nil {
		panic(err)
	}
	return reg
}
