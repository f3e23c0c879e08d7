package http

import (
	"net/http"
	"strconv"

	"github.com/neomorfeo/provisr/internal/tenantctx"
)

// Caller headers set by the authenticating gateway in front of this
// service. Root-only checks in the lifecycle service rely on them.
const (
	HeaderCallerDomain = "X-Caller-Domain"
	HeaderCallerID     = "X-Caller-Id"
)

// CallerContext lifts the authenticated caller tenant off the request
// headers onto the context.
func CallerContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dom := r.Header.Get(HeaderCallerDomain); dom != "" {
			id, _ := strconv.ParseInt(r.Header.Get(HeaderCallerID), 10, 64)
			ctx := tenantctx.WithCaller(r.Context(), tenantctx.Info{ID: id, Domain: dom})
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
