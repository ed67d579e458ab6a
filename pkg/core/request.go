package core

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// Codec encodes request bodies and filters: compact output with sorted map
// keys, so the bytes that are signed are reproducible.
var Codec = sonic.ConfigStd

// TimeFormat is the ISO-8601 layout used for startTime/endTime query values.
const TimeFormat = "2006-01-02T15:04:05.000Z"

type Params map[string]any

// Request describes a single REST call relative to APIPrefix.
type Request struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Query       Params            `json:"query,omitempty"`
	Body        any               `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequireAuth bool              `json:"require_auth"`
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Query:   make(Params),
		Headers: make(map[string]string),
	}
}

func (r *Request) SetQuery(key string, value any) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}

func (r *Request) SetBody(body any) *Request {
	r.Body = body
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

// Verb returns the HTTP method, defaulting to POST when a body is attached and GET otherwise.
func (r *Request) Verb() string {
	if r.Method != "" {
		return r.Method
	}
	if r.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// EncodeQuery renders the query parameters sorted by key.
func (r *Request) EncodeQuery() string {
	if len(r.Query) == 0 {
		return ""
	}
	values := make(url.Values, len(r.Query))
	for k, v := range r.Query {
		values.Set(k, formatParam(v))
	}
	return values.Encode()
}

// URI returns the API path and encoded query exactly as it is sent and signed.
func (r *Request) URI() string {
	uri := APIPrefix + r.Path
	if q := r.EncodeQuery(); q != "" {
		uri += "?" + q
	}
	return uri
}

// EncodeBody returns the compact JSON payload, or nil when there is no body.
func (r *Request) EncodeBody() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	if raw, ok := r.Body.([]byte); ok {
		return raw, nil
	}
	data, err := Codec.Marshal(r.Body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return data, nil
}

func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(TimeFormat)
	case Decimal:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
