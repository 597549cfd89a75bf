// Package errchain formats an error's unwrap chain for diagnostic logging,
// one layer per line with its concrete type.
package errchain

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// Summary renders the chain as "[i] %T: %v" lines, one line per layer.
func Summary(err error) string {
	if err == nil {
		return "<nil>"
	}
	var out string
	i := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		out += fmt.Sprintf("[%d] %T: %v\n", i, e, e)
		i++
	}
	return out
}

// Debug renders a spew.Sdump of every layer in the chain, used when an
// unclassified internal error needs a field-level dump for debugging.
func Debug(err error) string {
	var out string
	for i := 0; err != nil; err = errors.Unwrap(err) {
		out += fmt.Sprintf("[%d] %T\n", i, err)
		out += spew.Sdump(err)
		i++
	}
	return out
}
