package core

import "errors"

var (
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrUnsupportedBackend  = errors.New("unsupported audio backend")
	ErrUnsupportedCodec    = errors.New("unsupported codec")
	ErrConnectionLost      = errors.New("connection lost")
	ErrServerError         = errors.New("server reported an error")
)
