package logging

import (
	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	MaxDepth:                6,
}

type dump []any

func (d dump) String() string {
	return dumpConfig.Sdump(d...)
}

// DumpField renders values with spew, only when the entry is actually written.
func DumpField(key string, values ...any) zap.Field {
	return zap.Stringer(key, dump(values))
}
