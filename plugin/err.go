package plugin

import (
	"errors"

	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

var (
	ErrPeriod = errors.New(f("period must be a number of at least 1"))
)

// ErrScript is a failure of a plugin script.
type ErrScript struct {
	Name string
	Err  error
}

func (es *ErrScript) Error() string {
	return f("plugin %v: %v", es.Name, es.Err)
}

func (es *ErrScript) Unwrap() error {
	return es.Err
}
