package cli

import (
	"fmt"

	"github.com/lagerhq/lager/pkg/lager"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type ErrorHandler struct {
	InternalDebug bool
	Verbose       bool
}

func (h ErrorHandler) PrintErr(err error) {
	h.printErr(err, 0)
}

func (h ErrorHandler) printErr(err error, num int) (nextNum int) {
	log := zap.L()

	errFmt := "%v"
	if h.InternalDebug {
		errFmt = "%+v"
	}

	errs := multierr.Errors(err)
	switch len(errs) {
	case 0:
		return num

	case 1:
		err = errs[0]

	default:
		log.Sugar().Errorf("%d errors:", len(errs))
		for _, err := range errs {
			num = h.printErr(err, num+1)
		}
		return num
	}

	prefix := ""
	if num > 0 {
		prefix = fmt.Sprintf("[err %d] ", num)
	}

	var herr *lager.HookError
	if errors.As(err, &herr) {
		log = log.With(zap.String("plugin", herr.Plugin), zap.String("event", herr.Event))
		if h.Verbose || h.InternalDebug {
			log.Sugar().Errorf(prefix+errFmt, err)
		} else {
			log.Sugar().Errorf(prefix+"%s failed: "+errFmt, herr.Plugin, herr.Cause)
		}
		return num
	}

	log.Sugar().Errorf(prefix+errFmt, err)
	return num
}
