// Package camera provides an HTTP interface to a Xenics camera
package camera

import (
	"encoding/json"
	"errors"
	"go/types"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	cam "github.com/nasa-jpl/psfscan/camera"
	"github.com/nasa-jpl/psfscan/generichttp"
	"github.com/nasa-jpl/psfscan/imgrec"
	"github.com/nasa-jpl/psfscan/liveview"
	"github.com/nasa-jpl/psfscan/server"
	"github.com/nasa-jpl/psfscan/util"
)

// HTTPCamera wraps a camera in an HTTP route table
type HTTPCamera struct {
	// Cam is the underlying camera
	Cam *cam.Camera

	// Rec, if not nil, receives frames and recordings while it is active
	Rec *imgrec.Recorder

	// Live, if not nil, is fed every streamed frame and served on /live
	Live *liveview.Hub

	// RouteTable maps URLs to functions
	RouteTable generichttp.RouteTable

	// mu guards recording
	mu        sync.Mutex
	recording bool
}

// NewHTTPCamera returns a new HTTP wrapper around a camera.
// rec and live may be nil
func NewHTTPCamera(c *cam.Camera, rec *imgrec.Recorder, live *liveview.Hub) *HTTPCamera {
	h := &HTTPCamera{Cam: c, Rec: rec, Live: live}
	rt := generichttp.RouteTable{
		generichttp.MethodPath{Method: http.MethodGet, Path: "/frame"}:             h.GetFrame,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/frame/dump"}:       h.DumpFrame,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/frame-parameters"}:  h.GetFrameParameters,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/recording/start"}:  h.StartRecording,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/recording/stop"}:   h.StopRecording,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/recording/wait"}:   h.WaitRecording,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/recording"}:         h.GetRecording,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/property"}:          h.ListProperties,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/property"}:         h.Configure,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/property/{name}"}:   h.GetProperty,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/property/{name}"}:  h.SetProperty,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/integration-time"}: generichttp.GetFloat(h.integrationTime),
	}
	if live != nil {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/live"}] = live.ServeHTTP
	}
	h.RouteTable = rt
	if rec != nil {
		imgrec.NewHTTPWrapper(rec).Inject(h)
	}
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/endpoints"}] = h.GetEndpoints
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h *HTTPCamera) RT() generichttp.RouteTable {
	return h.RouteTable
}

// status maps engine errors onto HTTP status codes
func status(err error) int {
	switch {
	case errors.Is(err, cam.ErrBusy), errors.Is(err, cam.ErrAlreadyRecording),
		errors.Is(err, cam.ErrRegistryBusy), errors.Is(err, cam.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, cam.ErrNotOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPCamera) integrationTime() (float64, error) {
	return h.Cam.GetNumProperty("IntegrationTime")
}

// GetFrame takes a picture and returns it on a GET request.
//
// the image format may be specified in a query parameter fmt, one of jpg, png
// or fits; default to jpg.  jpg and png are stretched to 8 bits for viewing,
// fits carries the full depth.
//
// the integration time may be specified as a query parameter integrationTime
// in any time-looking format, such as "25ms" or "10us".  Strictly speaking,
// it must be a valid input to golang time.ParseDuration.
// if no unit is appended, us (microseconds, the camera's unit) is added.
func (h *HTTPCamera) GetFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if texp := q.Get("integrationTime"); texp != "" {
		if util.AllElementsNumbers(texp) {
			texp = texp + "us"
		}
		d, err := time.ParseDuration(texp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		us := float64(d) / float64(time.Microsecond)
		if err = h.Cam.SetProperty("IntegrationTime", us, cam.KindNum); err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
	}
	format := q.Get("fmt")
	if format == "" {
		format = "jpg"
	}
	if format != "jpg" && format != "png" && format != "fits" {
		http.Error(w, "fmt must be one of jpg, png, fits", http.StatusBadRequest)
		return
	}
	c, err := h.Cam.CaptureFrameOnly()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	if format == "fits" {
		replyFITS(w, c, h.Rec)
		return
	}
	f, err := c.Frame()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	im := Stretch(f)
	switch format {
	case "jpg":
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		jpeg.Encode(w, im, nil)
	case "png":
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		png.Encode(w, im)
	}
}

// DumpFrame reads and discards frames to flush the camera buffer
func (h *HTTPCamera) DumpFrame(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Cam.CaptureSingleFrame(true); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetFrameParameters returns the frame layout as JSON
func (h *HTTPCamera) GetFrameParameters(w http.ResponseWriter, r *http.Request) {
	p, err := h.Cam.FrameParameters()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	generichttp.ReplyJSON(w, p)
}

// StartRecording registers the live view and, if active, the recorder as
// handlers and starts streaming.  The recorder gets the raw stream
func (h *HTTPCamera) StartRecording(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.Cam.ClearHandlers(); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	if h.Live != nil {
		if err := h.Cam.AddHandler(h.Live, false); err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
	}
	h.recording = h.Rec != nil && h.Rec.Active()
	if h.recording {
		h.Rec.Incr()
		if err := h.Cam.AddHandler(h.Rec.File("raw"), false); err != nil {
			h.recording = false
			http.Error(w, err.Error(), status(err))
			return
		}
	}
	if err := h.Cam.StartRecording(); err != nil {
		h.recording = false
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// StopRecording stops streaming and returns the metadata of the session as JSON.
// If the recorder took the stream, the metadata is also written beside it as a .hdr
func (h *HTTPCamera) StopRecording(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	meta, err := h.Cam.StopRecording()
	if meta != nil && h.recording {
		if herr := h.Rec.WriteENVIHeader(meta); herr != nil {
			err = util.MergeErrors([]error{err, herr})
		}
		h.Rec.Incr()
		h.recording = false
	}
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	generichttp.ReplyJSON(w, meta)
}

// WaitRecording blocks for {"f64": seconds} while streaming and reports a
// failure of the stream if there was one
func (h *HTTPCamera) WaitRecording(w http.ResponseWriter, r *http.Request) {
	f := server.FloatT{}
	err := json.NewDecoder(r.Body).Decode(&f)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = h.Cam.WaitRecordingContext(r.Context(), util.SecsToDuration(f.F64)); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RecordingStatus is the JSON reply of GET /recording
type RecordingStatus struct {
	State   cam.State `json:"state"`
	Enabled bool      `json:"enabled"`
	Alive   bool      `json:"alive"`
	Frames  int       `json:"frames"`
	Session string    `json:"session"`
}

// GetRecording reports the state of the streaming session
func (h *HTTPCamera) GetRecording(w http.ResponseWriter, r *http.Request) {
	st := RecordingStatus{
		State:   h.Cam.State(),
		Enabled: h.Cam.Enabled(),
		Alive:   h.Cam.IsAlive(),
		Frames:  h.Cam.Metrics().Frames,
		Session: h.Cam.SessionID(),
	}
	generichttp.ReplyJSON(w, st)
}

// ListProperties returns the name, range and unit of every property
func (h *HTTPCamera) ListProperties(w http.ResponseWriter, r *http.Request) {
	names, err := h.Cam.PropertyNames()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	infos := make([]cam.PropertyInfo, 0, len(names))
	for _, n := range names {
		info, err := h.Cam.PropertyInfo(n)
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		infos = append(infos, info)
	}
	generichttp.ReplyJSON(w, infos)
}

func kindOf(s string) (cam.PropertyKind, bool) {
	switch k := cam.PropertyKind(strings.ToLower(s)); k {
	case "":
		return cam.KindNum, true
	case cam.KindNum, cam.KindBool, cam.KindStr:
		return k, true
	default:
		return k, false
	}
}

// GetProperty reads the property named in the URL.  The query parameter
// kind (num, bool, str; default num) selects how it is read and returned
func (h *HTTPCamera) GetProperty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kind, ok := kindOf(r.URL.Query().Get("kind"))
	if !ok {
		http.Error(w, "kind must be one of num, bool, str", http.StatusBadRequest)
		return
	}
	v, err := h.Cam.GetProperty(name, kind)
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	var hp server.HumanPayload
	switch x := v.(type) {
	case bool:
		hp = server.HumanPayload{T: types.Bool, Bool: x}
	case string:
		hp = server.HumanPayload{T: types.String, String: x}
	case float64:
		hp = server.HumanPayload{T: types.Float64, Float: x}
	}
	hp.EncodeAndRespond(w, r)
}

// PropertyRequest is the body of POST /property/{name}
type PropertyRequest struct {
	Kind  string      `json:"kind"`
	Value interface{} `json:"value"`
}

// SetProperty writes the property named in the URL from a PropertyRequest.
// If kind is empty it is inferred from the JSON type of value
func (h *HTTPCamera) SetProperty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	req := PropertyRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind := cam.KindOf(req.Value)
	if req.Kind != "" {
		var ok bool
		if kind, ok = kindOf(req.Kind); !ok {
			http.Error(w, "kind must be one of num, bool, str", http.StatusBadRequest)
			return
		}
	}
	if err = h.Cam.SetProperty(name, req.Value, kind); err != nil {
		var bad cam.ErrBadPropertyValue
		if errors.As(err, &bad) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Configure sets many properties from a JSON object of name: value
func (h *HTTPCamera) Configure(w http.ResponseWriter, r *http.Request) {
	settings := map[string]interface{}{}
	err := json.NewDecoder(r.Body).Decode(&settings)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = h.Cam.Configure(settings); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetEndpoints lists the routes of the camera
func (h *HTTPCamera) GetEndpoints(w http.ResponseWriter, r *http.Request) {
	generichttp.ReplyJSON(w, h.RouteTable.Endpoints())
}
