package utils

import (
	"io"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true
	spewConfig.SortKeys = true
}

// FDump writes a stable dump of a, pointer addresses are omitted so that
// two dumps of equal values compare equal.
func FDump(w io.Writer, a ...interface{}) {
	spewConfig.Fdump(w, a...)
}
