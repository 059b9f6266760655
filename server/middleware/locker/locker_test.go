package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/psfscan/generichttp"
)

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func setup() (*Locker, http.Handler) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	rt := table{
		generichttp.MethodPath{Method: http.MethodPost, Path: "/recording/start"}: ok,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/recording"}:        ok,
	}
	l := New()
	Inject(rt, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	rt.RT().Bind(r)
	return l, r
}

func do(h http.Handler, method, path, body string) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w.Code
}

func TestLockBouncesWrites(t *testing.T) {
	l, h := setup()
	if code := do(h, http.MethodPost, "/recording/start", ""); code != http.StatusOK {
		t.Errorf("expected 200 while unlocked, got %d", code)
	}
	if code := do(h, http.MethodPost, "/lock", `{"bool": true}`); code != http.StatusOK {
		t.Fatalf("expected 200 locking, got %d", code)
	}
	if !l.Locked() {
		t.Fatal("expected the locker to be locked")
	}
	if code := do(h, http.MethodPost, "/recording/start", ""); code != http.StatusLocked {
		t.Errorf("expected 423 while locked, got %d", code)
	}
	if code := do(h, http.MethodGet, "/recording", ""); code != http.StatusLocked {
		t.Errorf("expected 423 for reads while locked, got %d", code)
	}
	if code := do(h, http.MethodPost, "/lock", `{"bool": false}`); code != http.StatusOK {
		t.Fatalf("expected the lock route to stay reachable, got %d", code)
	}
	if code := do(h, http.MethodPost, "/recording/start", ""); code != http.StatusOK {
		t.Errorf("expected 200 after unlock, got %d", code)
	}
}

func TestLockGet(t *testing.T) {
	l, h := setup()
	l.Lock()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lock", nil))
	if got := strings.TrimSpace(w.Body.String()); got != `{"bool":true}` {
		t.Errorf("expected {\"bool\":true} got %s", got)
	}
}
