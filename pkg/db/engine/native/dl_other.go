//go:build !(darwin || freebsd || linux)

package native

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

var errUnsupported = errors.Newf("native: dynamic loading is not supported on %s", runtime.GOOS)

func dlopen(string) (uintptr, error) {
	return 0, errUnsupported
}

func bind(uintptr, any, string) error {
	return errUnsupported
}
