package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mtconnect-go/agentcore/errs"
	"github.com/mtconnect-go/agentcore/router"
)

func TestRouterParsesPathAndQueryParams(t *testing.T) {
	rt := router.New()
	var got router.Values
	rt.Handle(router.Route{
		Method:  "GET",
		Pattern: "/{device}/sample",
		Params: []router.ParamSpec{
			{Name: "device", Part: router.PartPath, Type: router.TypeString},
		},
		Handler: func(w http.ResponseWriter, r *http.Request, params router.Values) {
			got = params
			w.WriteHeader(http.StatusOK)
		},
	}, failErr(t))

	req := httptest.NewRequest(http.MethodGet, "/Mill/sample?count=10", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.String("device") != "Mill" {
		t.Fatalf("expected device=Mill, got %q", got.String("device"))
	}
}

func TestRouterCoercesQueryTypesWithDefaults(t *testing.T) {
	rt := router.New()
	var got router.Values
	rt.Handle(router.Route{
		Method:  "GET",
		Pattern: "/current",
		Params: []router.ParamSpec{
			{Name: "count", Part: router.PartQuery, Type: router.TypeInteger, Default: int64(100)},
			{Name: "from", Part: router.PartQuery, Type: router.TypeUnsignedInteger},
		},
		Handler: func(w http.ResponseWriter, r *http.Request, params router.Values) {
			got = params
			w.WriteHeader(http.StatusOK)
		},
	}, failErr(t))

	req := httptest.NewRequest(http.MethodGet, "/current", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.Int64("count") != 100 {
		t.Fatalf("expected default count=100, got %d", got.Int64("count"))
	}
	if got.Has("from") {
		t.Fatalf("expected from to be absent, got %v", got["from"])
	}
}

func TestRouterRejectsInvalidParameterValue(t *testing.T) {
	rt := router.New()
	called := false
	var gotErr *errs.Many
	rt.Handle(router.Route{
		Method:  "GET",
		Pattern: "/sample",
		Params: []router.ParamSpec{
			{Name: "count", Part: router.PartQuery, Type: router.TypeInteger},
		},
		Handler: func(w http.ResponseWriter, r *http.Request, params router.Values) {
			called = true
		},
	}, func(w http.ResponseWriter, r *http.Request, err *errs.Many) {
		gotErr = err
		w.WriteHeader(err.Status())
	})

	req := httptest.NewRequest(http.MethodGet, "/sample?count=notanumber", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler should not run on a parameter error")
	}
	if gotErr == nil || gotErr.Errors[0].Code != errs.InvalidParameterValue {
		t.Fatalf("expected INVALID_PARAMETER_VALUE, got %v", gotErr)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func failErr(t *testing.T) func(http.ResponseWriter, *http.Request, *errs.Many) {
	return func(w http.ResponseWriter, r *http.Request, err *errs.Many) {
		t.Fatalf("unexpected parameter error: %v", err)
	}
}
