package io

import (
	"errors"

	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

var (
	// USART errors
	ErrInputFull = errors.New(f("usart input full"))
	ErrClosed    = errors.New(f("usart input closed"))
)
