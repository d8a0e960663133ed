package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snapetech/iptv-portal/internal/errs"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw, wantBase, wantUser, wantPass string
	}{
		{
			"http://host.example:8080/get.php?username=u1&password=p1&type=m3u_plus&output=ts",
			"http://host.example:8080/player_api.php?username=u1&password=p1", "u1", "p1",
		},
		{
			"https://host.example/xmltv.php?username=a&password=b",
			"https://host.example/player_api.php?username=a&password=b", "a", "b",
		},
		{
			"http://host.example/player_api.php?username=u&password=p&extra=dropme",
			"http://host.example/player_api.php?username=u&password=p", "u", "p",
		},
		{
			"http://host.example:25461",
			"http://host.example:25461/player_api.php", "", "",
		},
	}
	for _, c := range cases {
		base, user, pass, err := Normalize(c.raw)
		if err != nil {
			t.Errorf("Normalize(%q): %v", c.raw, err)
			continue
		}
		if base != c.wantBase || user != c.wantUser || pass != c.wantPass {
			t.Errorf("Normalize(%q) = %q, %q, %q", c.raw, base, user, pass)
		}
	}
}

func TestNormalize_rejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"ftp://host/get.php", "file:///etc/passwd", "not a url at all", ""} {
		if _, _, _, err := Normalize(raw); err == nil {
			t.Errorf("Normalize(%q): expected error", raw)
		}
	}
}

func newBinder(srv *httptest.Server) *Binder {
	return New(srv.Client(), "Mozilla/5.0 (test)", nil)
}

func TestBind_active(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_info":{"username":"u1","password":"p1","status":"Active",
			"exp_date":"1893456000","active_cons":"1","max_connections":2}}`))
	}))
	defer srv.Close()

	b, err := newBinder(srv).Bind(context.Background(), srv.URL+"/get.php?username=u1&password=p1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusActive {
		t.Errorf("status = %s", b.Status)
	}
	if b.ExpiresAt != 1893456000 || b.Indefinite() {
		t.Errorf("ExpiresAt = %d", b.ExpiresAt)
	}
	if b.ActiveConnections != 1 || b.MaxConnections != 2 {
		t.Errorf("cons = %d/%d", b.ActiveConnections, b.MaxConnections)
	}
	if gotUA != "Mozilla/5.0 (test)" {
		t.Errorf("user-agent = %q", gotUA)
	}
}

func TestBind_indefiniteExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_info":{"status":"Active","exp_date":"null"}}`))
	}))
	defer srv.Close()

	b, err := newBinder(srv).Bind(context.Background(), srv.URL+"/get.php?username=u&password=p")
	if err != nil {
		t.Fatal(err)
	}
	if !b.Indefinite() {
		t.Errorf("ExpiresAt = %d, want indefinite", b.ExpiresAt)
	}
}

func TestBind_nonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer srv.Close()

	_, err := newBinder(srv).Bind(context.Background(), srv.URL+"/get.php?username=u&password=p")
	if errs.KindOf(err) != errs.ProviderBadResponse {
		t.Errorf("err = %v", err)
	}
}

func TestBind_httpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newBinder(srv).Bind(context.Background(), srv.URL+"/get.php?username=u&password=p")
	if errs.KindOf(err) != errs.ProviderBadResponse {
		t.Errorf("err = %v", err)
	}
}

func TestBind_missingUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"auth":0}`))
	}))
	defer srv.Close()

	_, err := newBinder(srv).Bind(context.Background(), srv.URL+"/get.php?username=u&password=p")
	if errs.KindOf(err) != errs.ProviderLoginRejected {
		t.Errorf("err = %v", err)
	}
}

func TestBind_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	binder := New(&http.Client{Timeout: 20 * time.Millisecond}, "ua", nil)
	_, err := binder.Bind(context.Background(), srv.URL+"/get.php?username=u&password=p")
	if errs.KindOf(err) != errs.ProviderUnreachable {
		t.Errorf("err = %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"Active": StatusActive, "active": StatusActive,
		"Expired": StatusExpired, "Banned": StatusDisabled,
		"Disabled": StatusDisabled, "whatever": StatusUnknown, "": StatusUnknown,
	}
	for in, want := range cases {
		if got := parseStatus(in); got != want {
			t.Errorf("parseStatus(%q) = %s, want %s", in, got, want)
		}
	}
}
