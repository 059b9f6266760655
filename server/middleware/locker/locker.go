// Package locker provides an HTTP middleware which takes a camera out of
// reach of other clients.  While locked, every protected route answers 423
// (locked) so a scan or recording in progress cannot be disturbed.
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/nasa-jpl/psfscan/generichttp"
	"github.com/nasa-jpl/psfscan/server"
)

// ManipulableLock is a lock which can be checked as middleware and driven over HTTP
type ManipulableLock interface {
	Lock()
	Unlock()
	Locked() bool
	Check(http.Handler) http.Handler
	HTTPGet(http.ResponseWriter, *http.Request)
	HTTPSet(http.ResponseWriter, *http.Request)
}

// Inject adds GET and POST /lock to the route table of other
func Inject(other generichttp.HTTPer, l ManipulableLock) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = l.HTTPSet
}

// Locker is a non-blocking lock with a list of path fragments it leaves open
type Locker struct {
	locked atomic.Bool

	// DoNotProtect holds path fragments which stay reachable while locked
	DoNotProtect []string
}

// New returns an unlocked Locker which leaves the lock routes open
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock"}}
}

// Lock takes the lock
func (l *Locker) Lock() { l.locked.Store(true) }

// Unlock releases the lock
func (l *Locker) Unlock() { l.locked.Store(false) }

// Locked reports if the lock is held
func (l *Locker) Locked() bool { return l.locked.Load() }

// protects reports if path is covered by the lock
func (l *Locker) protects(path string) bool {
	for _, frag := range l.DoNotProtect {
		if strings.Contains(path, frag) {
			return false
		}
	}
	return true
}

// Check is middleware which answers 423 on protected paths while locked
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() && l.protects(r.URL.Path) {
			http.Error(w, "camera is locked", http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet takes or releases the lock from a {"bool": locked} body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req server.BoolT
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet replies {"bool": locked}
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	server.HumanPayload{T: types.Bool, Bool: l.Locked()}.EncodeAndRespond(w, r)
}
