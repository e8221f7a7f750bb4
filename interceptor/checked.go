package interceptor

import (
	"net/http"

	"github.com/xraph/forge"
)

// Checked wraps an opinionated forge handler so its response is swept
// before it leaves the boundary. The inner handler computes the
// response; Checked owns the write, so nothing reaches the wire until
// the sweep passes. A failed sweep surfaces as 403 with no payload
// detail.
func Checked[Req any, Resp any](i *Interceptor, status int, fn func(forge.Context, *Req) (Resp, error)) func(forge.Context, *Req) (Resp, error) {
	return func(ctx forge.Context, req *Req) (Resp, error) {
		var zero Resp
		resp, err := fn(ctx, req)
		if err != nil {
			return zero, err
		}
		if err := i.Sweep(ctx.Context(), resp); err != nil {
			return zero, forge.Forbidden("response withheld")
		}
		return resp, ctx.JSON(status, resp)
	}
}

// CheckedOK is Checked with the common 200 default.
func CheckedOK[Req any, Resp any](i *Interceptor, fn func(forge.Context, *Req) (Resp, error)) func(forge.Context, *Req) (Resp, error) {
	return Checked[Req, Resp](i, http.StatusOK, fn)
}
