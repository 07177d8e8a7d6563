package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

// Response is the JSON envelope of every admin API reply
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success sends data with code 0
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, Response{Msg: "success", Data: data})
}

// Accepted acknowledges work that continues in the background
func Accepted(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Msg: "accepted", Data: data})
}

// Error sends err in the envelope. Errors without a code are reported as internal errors and
// their text is not exposed.
func Error(ctx context.Context, c *app.RequestContext, err error) {
	e := errcode.From(err)
	if e.Code == errcode.ErrInternalServer.Code || e.Code == errcode.ErrStoreFailure.Code {
		log.CtxError(ctx, "request failed: path=%s, error=%v", c.Path(), err)
	}
	ErrorWithCode(ctx, c, e)
}

// ErrorWithCode sends e with the HTTP status of its kind
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(Status(e), Response{Code: e.Code, Msg: e.Msg})
}

// Status maps an error code range to an HTTP status
func Status(e *errcode.Error) int {
	switch {
	case e.Code == 0:
		return http.StatusOK
	case e.Code == errcode.ErrInvalidParam.Code:
		return http.StatusBadRequest
	case e.Code == errcode.ErrUnauthorized.Code:
		return http.StatusUnauthorized
	case e.Code == errcode.ErrForbidden.Code, e.Code == errcode.ErrNotAdmin.Code:
		return http.StatusForbidden
	case e.Code == errcode.ErrNotFound.Code:
		return http.StatusNotFound
	case e.Code >= 2000 && e.Code < 3000:
		return http.StatusUnauthorized
	case e.Code >= 5000 && e.Code < 6000:
		return http.StatusServiceUnavailable
	case e.Code >= 7000 && e.Code < 8000:
		return http.StatusBadGateway
	case e.Code >= 8000 && e.Code < 9000:
		return http.StatusBadRequest
	case e.Code >= 9000 && e.Code < 10000:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
