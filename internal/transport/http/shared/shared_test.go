package shared

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=20", nil)
	page := ParsePagination(req, 50, 200)
	if page.Limit != 200 || page.Offset != 20 {
		t.Fatalf("unexpected pagination %+v", page)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=-1&offset=x", nil)
	page = ParsePagination(req, 50, 200)
	if page.Limit != 50 || page.Offset != 0 {
		t.Fatalf("expected defaults, got %+v", page)
	}

	req = httptest.NewRequest(http.MethodGet, "/?page=3&pageSize=25", nil)
	page = ParsePagination(req, 50, 200)
	if page.Limit != 25 || page.Offset != 50 {
		t.Fatalf("unexpected page-based pagination %+v", page)
	}

	req = httptest.NewRequest(http.MethodGet, "/?page=3&limit=10&offset=5", nil)
	page = ParsePagination(req, 50, 200)
	if page.Limit != 10 || page.Offset != 5 {
		t.Fatalf("expected limit/offset to win, got %+v", page)
	}
}

func TestValidatorPeriodAndEnum(t *testing.T) {
	v := NewValidator()
	if period, ok := v.Period("period", " 2024-03 "); !ok || period != "2024-03" {
		t.Fatalf("unexpected period %q %v", period, ok)
	}
	v.Period("period", "March")
	v.Enum("kind", "coaching", []string{"training", "audit", "warning_letter"}, "unknown kind")
	v.Required("key", " ", "is required")

	issues := v.Issues()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %v", issues)
	}
	if issues[0].Field != "key" || issues[1].Field != "kind" || issues[2].Field != "period" {
		t.Fatalf("expected issues sorted by field, got %v", issues)
	}
}

func TestValidatorRejectWritesEnvelope(t *testing.T) {
	v := NewValidator()
	v.Add("period", "must be a period in YYYY-MM format")
	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req-1") {
		t.Fatal("expected reject")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"].(map[string]any)["code"] != "validation_error" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Period string `json:"period"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"period":"2024-03"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Period != "2024-03" {
		t.Fatalf("unexpected decode %v %+v", err, dst)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"period":"2024-03","extra":1}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected unknown field error")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"period":"a"}{"period":"b"}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected trailing document error")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	if ClientIP(req) != "198.51.100.7" {
		t.Fatalf("unexpected ip %q", ClientIP(req))
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ClientIP(req) != "203.0.113.9" {
		t.Fatalf("unexpected forwarded ip %q", ClientIP(req))
	}
}
