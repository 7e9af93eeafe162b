package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("应为 GET 请求, 实际 %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPVolumeSuccess(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		field    string
		decimals int32
		want     uint64
	}{
		{name: "number", body: `{"volume": 1500000}`, want: 1_500_000},
		{name: "string", body: `{"volume": "999999"}`, want: 999_999},
		{name: "nested", body: `{"data": {"total": "12.5"}}`, field: "data.total", decimals: 6, want: 12_500_000},
		{name: "floor", body: `{"volume": "1.99"}`, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serveJSON(t, http.StatusOK, tc.body)
			h := NewHTTPVolume(VolumeOptions{URL: srv.URL, Field: tc.field, Decimals: tc.decimals, Timeout: time.Second}, zerolog.Nop())
			got, err := h.FetchVolume(context.Background())
			if err != nil {
				t.Fatalf("FetchVolume 失败: %v", err)
			}
			if got != tc.want {
				t.Fatalf("volume 不正确: got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHTTPVolumeErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http 500", status: http.StatusInternalServerError, body: `{"message":"down"}`},
		{name: "missing field", status: http.StatusOK, body: `{"other": 1}`},
		{name: "negative", status: http.StatusOK, body: `{"volume": -5}`},
		{name: "overflow", status: http.StatusOK, body: `{"volume": "18446744073709551616"}`},
		{name: "bool", status: http.StatusOK, body: `{"volume": true}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serveJSON(t, tc.status, tc.body)
			h := NewHTTPVolume(VolumeOptions{URL: srv.URL, Timeout: time.Second}, zerolog.Nop())
			if _, err := h.FetchVolume(context.Background()); err == nil {
				t.Fatal("应返回错误")
			}
		})
	}
}

func TestHTTPVolumeRequiresURL(t *testing.T) {
	h := NewHTTPVolume(VolumeOptions{}, zerolog.Nop())
	if _, err := h.FetchVolume(context.Background()); err == nil {
		t.Fatal("缺少 URL 时应返回错误")
	}
}

func TestStaticVolume(t *testing.T) {
	got, err := StaticVolume(42).FetchVolume(context.Background())
	if err != nil || got != 42 {
		t.Fatalf("StaticVolume 返回 %d, %v", got, err)
	}
}
