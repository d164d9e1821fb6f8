package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                    "/",
		"/metrics":            "/metrics",
		"/healthz":            "/healthz",
		"/readyz?verbose=1":   "/readyz",
		"/v1/info":            "/v1/info",
		"/v1/info?pretty=yes": "/v1/info",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
