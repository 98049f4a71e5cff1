package logx

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AnonymizeIP truncates an address for logging. IPv4 keeps the first three octets,
// IPv6 keeps the first 64 bits.
func AnonymizeIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	ip := net.ParseIP(addr)
	switch {
	case ip == nil:
		return "unknown_ip"
	case ip.IsLoopback():
		return "127.0.0.1"
	}

	if v4 := ip.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}

	masked := ip.Mask(net.CIDRMask(64, 128))
	return masked.String()
}

// RequestLogger returns chi middleware that logs one line per completed request and
// places a request-scoped logger in the context (retrieve it with zerolog.Ctx).
// Scrape traffic to quietPaths is logged at debug level.
func RequestLogger(quietPaths ...string) func(next http.Handler) http.Handler {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			logger := Logger().With().
				Str("component", "http").
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", AnonymizeIP(r.RemoteAddr)).
				Str("request_method", r.Method).
				Str("request_uri", r.RequestURI).
				Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(logger.WithContext(r.Context()))

			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			var event *zerolog.Event
			switch {
			case status >= 500:
				event = logger.Error()
			case status >= 400:
				event = logger.Warn()
			default:
				if _, ok := quiet[r.URL.Path]; ok {
					event = logger.Debug()
				} else {
					event = logger.Info()
				}
			}

			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				event = event.Str("route", rctx.RoutePattern())
			}

			event.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("Request completed")
		}

		return http.HandlerFunc(fn)
	}
}
