package model

import (
	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

// ErrUnknownModel is a request for a device that has no table.
type ErrUnknownModel struct {
	Name string
}

func (eu ErrUnknownModel) Error() string {
	return f("unknown model %q", eu.Name)
}

func (eu ErrUnknownModel) Unwrap() error {
	return avr.ErrModel
}
