// Package router wires declared URI routes (verb + Go 1.22 ServeMux
// pattern, e.g. "GET /{device}/sample") to handlers, and coerces path and
// query parameters into typed Go values before the handler ever runs —
// the same job as the original routing/parameter machinery, adapted onto
// http.ServeMux's built-in pattern matching instead of a hand-rolled
// regex table.
package router

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/mtconnect-go/agentcore/errs"
)

// ParamType names the wire type a query or path parameter is coerced to.
type ParamType int

const (
	TypeString ParamType = iota
	TypeInteger
	TypeUnsignedInteger
	TypeDouble
	TypeBool
)

// Part distinguishes where a parameter comes from.
type Part int

const (
	PartQuery Part = iota
	PartPath
)

// ParamSpec declares one path or query parameter a route accepts.
type ParamSpec struct {
	Name     string
	Part     Part
	Type     ParamType
	Default  any // used when absent from a query string; path params have no default
	Required bool
	Minimum  *int64
	Maximum  *int64
}

// Route is one registered endpoint.
type Route struct {
	Method  string
	Pattern string
	Params  []ParamSpec
	Handler func(w http.ResponseWriter, r *http.Request, params Values)
}

// Values holds the coerced parameter values for one matched request.
type Values map[string]any

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Int64(name string) int64 {
	i, _ := v[name].(int64)
	return i
}

func (v Values) Uint64(name string) uint64 {
	u, _ := v[name].(uint64)
	return u
}

func (v Values) Float64(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// Has reports whether name has a value: it was present in the request,
// or it was absent and its ParamSpec declares a Default. Only an absent
// parameter without a Default reports false.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

type valuesKey struct{}

// FromContext retrieves the Values a route handler stored, for code
// reached indirectly (middleware, shared helpers) that doesn't have the
// Values parameter directly.
func FromContext(ctx context.Context) Values {
	v, _ := ctx.Value(valuesKey{}).(Values)
	return v
}

// Router registers Routes onto an http.ServeMux in the order Handle is
// called — ServeMux itself resolves overlapping patterns by specificity,
// so registration order only matters for routes with identical patterns,
// which the route table avoids by construction.
type Router struct {
	mux *http.ServeMux
}

// New wraps a fresh http.ServeMux.
func New() *Router {
	return &Router{mux: http.NewServeMux()}
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Handle registers a route. On a match, query and path parameters are
// parsed per spec; a type/range failure writes no response itself —
// errFn receives the aggregated error so the caller's error serializer
// (schema/version aware) renders it.
func (rt *Router) Handle(route Route, errFn func(w http.ResponseWriter, r *http.Request, err *errs.Many)) {
	pattern := route.Method + " " + route.Pattern
	rt.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		values, err := parseParams(r, route.Params)
		if err != nil {
			errFn(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), valuesKey{}, values)
		route.Handler(w, r.WithContext(ctx), values)
	})
}

func parseParams(r *http.Request, specs []ParamSpec) (Values, *errs.Many) {
	out := make(Values, len(specs))
	var many *errs.Many

	for _, spec := range specs {
		raw, present := rawValue(r, spec)
		if !present {
			if spec.Required {
				many = appendErr(many, errs.InvalidParameterValueError(spec.Name, typeName(spec.Type), "", ""))
				continue
			}
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}

		val, convErr := convert(spec, raw)
		if convErr != nil {
			many = appendErr(many, errs.InvalidParameterValueError(spec.Name, typeName(spec.Type), "", raw))
			continue
		}
		if rangeErr := checkRange(spec, val); rangeErr != nil {
			many = appendErr(many, rangeErr)
			continue
		}
		out[spec.Name] = val
	}
	return out, many
}

func rawValue(r *http.Request, spec ParamSpec) (string, bool) {
	if spec.Part == PartPath {
		v := r.PathValue(spec.Name)
		return v, v != ""
	}
	if !r.URL.Query().Has(spec.Name) {
		return "", false
	}
	return r.URL.Query().Get(spec.Name), true
}

func convert(spec ParamSpec, raw string) (any, error) {
	switch spec.Type {
	case TypeInteger:
		return strconv.ParseInt(raw, 10, 64)
	case TypeUnsignedInteger:
		return strconv.ParseUint(raw, 10, 64)
	case TypeDouble:
		return strconv.ParseFloat(raw, 64)
	case TypeBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

func checkRange(spec ParamSpec, val any) *errs.Many {
	var n int64
	switch v := val.(type) {
	case int64:
		n = v
	case uint64:
		if v > math.MaxInt64 {
			n = math.MaxInt64
		} else {
			n = int64(v)
		}
	default:
		return nil
	}
	if spec.Minimum != nil && n < *spec.Minimum {
		return errs.OutOfRangeError(spec.Name, n, *spec.Minimum, derefOr(spec.Maximum, math.MaxInt64))
	}
	if spec.Maximum != nil && n > *spec.Maximum {
		return errs.OutOfRangeError(spec.Name, n, derefOr(spec.Minimum, math.MinInt64), *spec.Maximum)
	}
	return nil
}

func derefOr(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}

func typeName(t ParamType) string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeUnsignedInteger:
		return "unsigned_integer"
	case TypeDouble:
		return "double"
	case TypeBool:
		return "bool"
	default:
		return "string"
	}
}

func appendErr(m *errs.Many, add *errs.Many) *errs.Many {
	if m == nil {
		return add
	}
	m.Errors = append(m.Errors, add.Errors...)
	return m
}

// SplitCSV splits a comma-separated path/query value, trimming whitespace
// and dropping empty segments — used for the asset id list and the
// "path=" XPath filter's device/component segments.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
