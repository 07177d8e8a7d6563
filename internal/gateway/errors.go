package gateway

import (
	"errors"

	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

// Connection errors
var (
	ErrConnClosed     = errors.New("live feed connection closed")
	ErrWriteQueueFull = errors.New("live feed write queue full")
)

// Request errors are answered with their errcode in err_code
var (
	errMalformedRequest = errcode.ErrInvalidParam.Wrap(errors.New("malformed request"))
	errUnknownRequest   = errcode.ErrInvalidParam.Wrap(errors.New("unknown req_identifier"))
)
