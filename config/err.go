package config

import (
	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

// ErrLoad is a configuration file that did not run or did not make sense.
type ErrLoad struct {
	Filename string
	Err      error
}

func (el *ErrLoad) Error() string {
	return f("%v: %v", el.Filename, el.Err)
}

func (el *ErrLoad) Unwrap() error {
	return el.Err
}

// ErrType is a setting of the wrong type.
type ErrType struct {
	Name string
	Want string
	Got  string
}

func (et *ErrType) Error() string {
	return f("%v: want %v, got %v", et.Name, et.Want, et.Got)
}

// ErrValue is a setting out of range.
type ErrValue struct {
	Name  string
	Value any
}

func (ev *ErrValue) Error() string {
	return f("%v: value %v out of range", ev.Name, ev.Value)
}
