// Package httpclient provides outgoing http client with interceptor chain
package httpclient

import (
	"net/http"
	"net/textproto"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 20 * time.Second

// Interceptor pre- and post-processes outgoing requests
type Interceptor interface {
	Preprocess(req *http.Request) (*http.Request, error)
	Postprocess(req *http.Request, resp *http.Response) (*http.Response, error)
}

// Transport applies interceptors around underlying round tripper
type Transport struct {
	Transport    http.RoundTripper
	Interceptors []Interceptor
}

// RoundTrip implementation
func (t *Transport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	for _, i := range t.Interceptors {
		req, err = i.Preprocess(req)
		if err != nil {
			return
		}
	}

	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err = base.RoundTrip(req)
	if err != nil {
		return
	}

	for _, i := range t.Interceptors {
		resp, err = i.Postprocess(req, resp)
		if err != nil {
			return
		}
	}

	return
}

// StaticHeaders sets headers missing on outgoing requests
type StaticHeaders map[string]string

// Preprocess implementation
func (h StaticHeaders) Preprocess(req *http.Request) (*http.Request, error) {
	var cloned bool

	for k, v := range h {
		key := textproto.CanonicalMIMEHeaderKey(k)
		if req.Header.Get(key) != "" {
			continue
		}

		if !cloned {
			req = req.Clone(req.Context())
			cloned = true
		}

		req.Header.Set(key, v)
	}

	return req, nil
}

// Postprocess noop
func (h StaticHeaders) Postprocess(_ *http.Request, resp *http.Response) (*http.Response, error) {
	return resp, nil
}

// Logger logs every outgoing request at debug level
type Logger struct {
	Log *logrus.Logger
}

type startKey struct{}

// Preprocess implementation
func (l *Logger) Preprocess(req *http.Request) (*http.Request, error) {
	return req.WithContext(withStart(req.Context(), time.Now())), nil
}

// Postprocess implementation
func (l *Logger) Postprocess(req *http.Request, resp *http.Response) (*http.Response, error) {
	entry := l.Log.WithField("method", req.Method).
		WithField("host", req.URL.Host).
		WithField("path", req.URL.Path).
		WithField("status", resp.StatusCode)

	if start, ok := startOf(req.Context()); ok {
		entry = entry.WithField("latency", time.Since(start))
	}

	entry.Debug("Outgoing request")

	return resp, nil
}

// New returns http client identifying itself with given user agent and logging requests
func New(log *logrus.Logger, userAgent string) *http.Client {
	interceptors := []Interceptor{
		StaticHeaders{"User-Agent": userAgent},
	}

	if log != nil {
		interceptors = append(interceptors, &Logger{Log: log})
	}

	return &http.Client{
		Timeout: defaultTimeout,
		Transport: &Transport{
			Transport:    http.DefaultTransport,
			Interceptors: interceptors,
		},
	}
}
