// Package imgrec contains an image recorder used to automatically save images to disk.
//
// Files are named <Prefix><counter>.<ext> inside a yyyy-mm-dd folder under Root.
// One counter value may own several files with different extensions, e.g. a raw
// stream and its ENVI .hdr, or a single FITS frame.
package imgrec

import (
	"encoding/json"
	"fmt"
	"go/types"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nasa-jpl/psfscan/generichttp"
	"github.com/nasa-jpl/psfscan/server"
)

// HeaderWriter is something which can write itself as an ENVI header
type HeaderWriter interface {
	WriteENVI(io.Writer) error
}

// Recorder records image sequences with incrementing filenames in yyyy-mm-dd subfolders.
// It is safe for concurrent use
type Recorder struct {
	mu sync.Mutex

	// counter is the internally incrementing counter
	counter int

	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Ext is the extension Write uses, without the dot.  Empty means fits
	Ext string

	// timeFldr is the subfolder with yyyy-mm-dd format.
	timeFldr string

	// Enabled allows consumers to switch recording off without forgetting Root
	Enabled bool

	// last is the path of the most recent file closed out by Incr
	last string
}

// updateFolder checks the current time and updates the folder.  Must hold mu
func (r *Recorder) updateFolder() {
	r.timeFldr = time.Now().Format("2006-01-02")
}

// mkDir makes the folder and returns it.  Must hold mu
func (r *Recorder) mkDir() (string, error) {
	fldr := filepath.Join(r.Root, r.timeFldr)
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

func (r *Recorder) ext() string {
	if r.Ext == "" {
		return "fits"
	}
	return r.Ext
}

// name is the file name for the current counter.  Must hold mu
func (r *Recorder) name(ext string) string {
	return fmt.Sprintf("%s%06d.%s", r.Prefix, r.counter, ext)
}

// Active returns true if the recorder is enabled and has somewhere to write
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Enabled && r.Root != ""
}

// SetEnabled turns the recorder on or off
func (r *Recorder) SetEnabled(b bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Enabled = b
}

// Path returns the path the current counter writes to with the given extension
func (r *Recorder) Path(ext string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateFolder()
	return filepath.Join(r.Root, r.timeFldr, r.name(ext))
}

// Last returns the path of the last file closed by Incr, or "" if there is none
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// appendTo appends p to the current file with the given extension
func (r *Recorder) appendTo(ext string, p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateFolder()
	fldr, err := r.mkDir()
	if err != nil {
		return 0, err
	}
	fn := filepath.Join(fldr, r.name(ext))
	fid, err := os.OpenFile(fn, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0666)
	if err != nil {
		return 0, err
	}
	defer fid.Close()
	return fid.Write(p)
}

// Write implements io.Writer and appends to the current file
func (r *Recorder) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	ext := r.ext()
	r.mu.Unlock()
	return r.appendTo(ext, p)
}

// File returns a writer which appends to the current file with extension ext
func (r *Recorder) File(ext string) io.Writer {
	return extWriter{r: r, ext: ext}
}

type extWriter struct {
	r   *Recorder
	ext string
}

func (w extWriter) Write(p []byte) (int, error) {
	return w.r.appendTo(w.ext, p)
}

// WriteENVIHeader writes hdr beside the current file, as <name>.hdr
func (r *Recorder) WriteENVIHeader(hdr HeaderWriter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateFolder()
	fldr, err := r.mkDir()
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(fldr, r.name("hdr")))
	if err != nil {
		return err
	}
	if err = hdr.WriteENVI(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Incr updates the filename counter; it scans the folder to do so.  If there is an error, the counter is not incremented
func (r *Recorder) Incr() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateFolder()
	dn, _ := r.mkDir()
	files, err := os.ReadDir(dn)
	if err != nil {
		return
	}
	count := -1
	for _, file := range files {
		// skip directories, foreign extensions, and wrong prefix
		if file.IsDir() {
			continue
		}
		fn := file.Name()
		if !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		ext := filepath.Ext(fn)
		if ext == ".hdr" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(fn[len(r.Prefix):], ext))
		if err != nil {
			continue
		}
		if n > count {
			count = n
			r.last = filepath.Join(dn, fn)
		}
	}
	r.counter = count + 1
}

// HTTPWrapper is an HTTP wrapper around an image recorder that allows the folder and prefix to be changed on the fly
//
// it does not implement generichttp.HTTPer, offering an Inject method allowing it to be injected
// into another HTTPer
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

// SetRoot updates the root folder of the recorder
func (h HTTPWrapper) SetRoot(w http.ResponseWriter, r *http.Request) {
	str := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec := h.Recorder
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.Root = str.Str
	rec.updateFolder()
	if _, err = rec.mkDir(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetRoot gets the recorder's root folder and sends it back as JSON
func (h HTTPWrapper) GetRoot(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	hp := server.HumanPayload{T: types.String, String: h.Recorder.Root}
	h.mu.Unlock()
	hp.EncodeAndRespond(w, r)
}

// SetPrefix updates the filename prefix of the recorder
func (h HTTPWrapper) SetPrefix(w http.ResponseWriter, r *http.Request) {
	str := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.Recorder.Prefix = str.Str
	h.Recorder.counter = 0
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// GetPrefix gets the recorder's prefix and sends it back as JSON
func (h HTTPWrapper) GetPrefix(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	hp := server.HumanPayload{T: types.String, String: h.Recorder.Prefix}
	h.mu.Unlock()
	hp.EncodeAndRespond(w, r)
}

// GetEnabled returns the Recorder's Enabled field
func (h HTTPWrapper) GetEnabled(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	hp := server.HumanPayload{T: types.Bool, Bool: h.Recorder.Enabled}
	h.mu.Unlock()
	hp.EncodeAndRespond(w, r)
}

// GetLast serves the last file the recorder finished
func (h HTTPWrapper) GetLast(w http.ResponseWriter, r *http.Request) {
	last := h.Last()
	if last == "" {
		http.Error(w, "nothing recorded yet", http.StatusNotFound)
		return
	}
	server.ReplyWithFile(w, r, filepath.Base(last), filepath.Dir(last))
}

// Inject adds GET and POST routes for /autowrite/root, /autowrite/prefix and
// /autowrite/enabled, and GET /autowrite/last, to the HTTPer
func (h HTTPWrapper) Inject(other generichttp.HTTPer) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}] = h.SetRoot
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/root"}] = h.GetRoot
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}] = h.SetPrefix
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}] = h.GetPrefix
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/enabled"}] = generichttp.SetBool(func(b bool) error {
		h.SetEnabled(b)
		return nil
	})
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/enabled"}] = h.GetEnabled
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/last"}] = h.GetLast
}
