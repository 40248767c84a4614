// Package httpserver isolates and traces incoming HTTP requests. Each request gets its own
// isolation scope and an http.server transaction continuing the caller's trace.
package httpserver

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/route"
	"github.com/gorilla/mux"
	"net/http"
	"strings"
)

const (
	Op     = "http.server"
	Origin = "auto.http.augur.httpserver"

	HeaderSentryTrace = "sentry-trace"
	HeaderBaggage     = "baggage"
	HeaderTraceparent = "traceparent"
)

var sensitiveHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
	"Set-Cookie":    {},
	"X-Api-Key":     {},
}

type Options struct {
	// Repanic re-raises recovered panics after capturing them, leaving the response to an outer
	// recovery handler. Without it the middleware answers 500.
	Repanic bool
}

type Handler struct {
	options Options
}

func New(options Options) *Handler {
	return &Handler{options: options}
}

// Middleware wraps next and satisfies mux.MiddlewareFunc. Requests without trace headers start
// a new trace. The transaction is named by the route template when the router matched one.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, isolation := augur.NewIsolationScopeContext(r.Context())
		isolation.SetRequest(requestData(r))
		ctx = continueTrace(ctx, r.Header)

		name, source := transactionName(r)
		isolation.SetTransactionName(name)

		_ = augur.StartSpan(ctx, augur.SpanOptions{
			Name:   name,
			Op:     Op,
			Origin: Origin,
			Source: source,
			Kind:   augur.KindServer,
			Attributes: map[string]any{
				"http.request.method": r.Method,
				"url.path":            r.URL.Path,
			},
		}, func(ctx context.Context, span *augur.Span) error {
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if recovered := recover(); recovered != nil {
					augur.Recover(ctx, recovered, &augur.CaptureContext{
						Mechanism: &model.Mechanism{Type: augur.MechanismHTTP},
					})
					span.SetStatus(model.InternalError)
					if h.options.Repanic {
						panic(recovered)
					}
					if !rw.wroteHeader {
						http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					}
				}
				span.SetAttribute("http.response.status_code", rw.status)
				if span.Status() == model.UNSET {
					span.SetStatus(model.SpanStatusFromHTTPCode(rw.status))
				}
			}()
			next.ServeHTTP(rw, r.WithContext(ctx))
			return nil
		})
	})
}

func continueTrace(ctx context.Context, header http.Header) context.Context {
	if sentryTrace := header.Get(HeaderSentryTrace); sentryTrace != "" {
		return augur.ContinueTrace(ctx, sentryTrace, header.Get(HeaderBaggage))
	}
	if traceparent := header.Get(HeaderTraceparent); traceparent != "" {
		if pc, ok := augur.PropagationContextFromTraceparent(traceparent); ok {
			return withPropagationContext(ctx, pc)
		}
	}
	return withPropagationContext(ctx, augur.NewPropagationContext())
}

func withPropagationContext(ctx context.Context, pc augur.PropagationContext) context.Context {
	traceCtx, scope := augur.NewScopeContext(ctx)
	scope.ReplacePropagationContext(pc)
	return traceCtx
}

func transactionName(r *http.Request) (string, string) {
	if current := mux.CurrentRoute(r); current != nil {
		if template, err := current.GetPathTemplate(); err == nil {
			return r.Method + " " + template, route.SourceRoute
		}
	}
	return r.Method + " " + r.URL.Path, route.SourceURL
}

func requestData(r *http.Request) *model.Request {
	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if _, ok := sensitiveHeaders[http.CanonicalHeaderKey(key)]; ok {
			continue
		}
		headers[key] = strings.Join(values, ", ")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return &model.Request{
		URL:         scheme + "://" + r.Host + r.URL.Path,
		Method:      r.Method,
		QueryString: r.URL.RawQuery,
		Headers:     headers,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}
