package catalog

import (
	_ "embed"

	"ratitude/pkg/protocol"
)

//go:embed sample.toml
var sampleTOML []byte

// Sample builds a Registry from a small, hand-picked set of real
// entries (spec.md §1). It exists for tests, the simulator, and anyone
// trying rctmon out before supplying a real catalog; it is not a
// complete OID inventory.
func Sample() (*protocol.Registry, error) {
	return Parse(sampleTOML)
}
