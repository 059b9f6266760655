package camera

import (
	"io"
	"net/http"

	"github.com/astrogo/fitsio"
	cam "github.com/nasa-jpl/psfscan/camera"
	"github.com/nasa-jpl/psfscan/imgrec"
)

// captureCards are the header cards of a single capture
func captureCards(c cam.Capture) []fitsio.Card {
	meta := cam.BuildMetadata(c.Params, cam.Metrics{Frames: 1}, 0)
	cards := meta.Cards()
	return append(cards, fitsio.Card{Name: "FRAMETYP", Value: c.Params.Type.String(), Comment: "Xeneth frame type"})
}

// replyFITS streams a capture to the client as a FITS file.
// If rec is active the same bytes go to the next file of the recorder
func replyFITS(w http.ResponseWriter, c cam.Capture, rec *imgrec.Recorder) {
	f, err := c.Frame()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var w2 io.Writer = w
	if rec != nil && rec.Active() {
		rec.Incr()
		w2 = io.MultiWriter(w, rec.File("fits"))
		defer rec.Incr()
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "image/fits")
	hdr.Set("Content-Disposition", "attachment; filename=image.fits")
	if err = cam.WriteFITS(w2, captureCards(c), f); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
