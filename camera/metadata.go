package camera

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/psfscan/util"
)

// ENVITypes maps numpy-style type names to ENVI data type codes
var ENVITypes = map[string]int{
	"u1": 1,
	"i2": 2,
	"i4": 3,
	"f4": 4,
	"f8": 5,
	"u2": 12,
	"u4": 13,
	"i8": 14,
	"u8": 15,
}

// Field is one key of a Metadata header
type Field struct {
	Key   string
	Value interface{}
}

// Metadata is an ordered, ENVI-style header describing a recording
type Metadata []Field

// BuildMetadata summarizes a session.  Frames are stored band interleaved
// by line: each frame is a band, each row a line.
func BuildMetadata(p FrameParameters, m Metrics, recordTime time.Duration) Metadata {
	ms := util.DurationsToMillis(m.Timestamps)
	stamps := make([]string, len(ms))
	for i, t := range ms {
		stamps[i] = strconv.FormatInt(t, 10)
	}
	return Metadata{
		{"samples", p.Cols},
		{"bands", m.Frames},
		{"lines", p.Rows},
		{"data type", ENVITypes[p.SourceType()]},
		{"interleave", "bil"},
		// 1 is big endian in ENVI; kept so existing header readers see the values they expect
		{"byte order", 1},
		{"description", fmt.Sprintf("Capture time = %d\nFrame time stamps = [%s]",
			int(recordTime.Seconds()), strings.Join(stamps, ", "))},
	}
}

// Get returns the value of a key
func (m Metadata) Get(key string) (interface{}, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// WriteENVI writes m as an ENVI .hdr file
func (m Metadata) WriteENVI(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ENVI")
	for _, f := range m {
		if s, ok := f.Value.(string); ok && strings.Contains(s, "\n") {
			fmt.Fprintf(bw, "%s = {%s}\n", f.Key, s)
			continue
		}
		fmt.Fprintf(bw, "%s = %v\n", f.Key, f.Value)
	}
	return bw.Flush()
}

// MarshalJSON keeps the order of the keys
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// fitsKeys are the FITS names of the fixed header keys.  description is
// free text and has no card
var fitsKeys = map[string]struct {
	name, comment string
}{
	"samples":    {"SAMPLES", "columns per frame"},
	"bands":      {"BANDS", "frames recorded"},
	"lines":      {"LINES", "rows per frame"},
	"data type":  {"DATATYPE", "ENVI data type of the raw stream"},
	"interleave": {"INTERLV", "raw stream interleave"},
	"byte order": {"BYTEORD", "ENVI byte order flag, fixed at 1"},
}

// Cards converts m to FITS header cards
func (m Metadata) Cards() []fitsio.Card {
	cards := make([]fitsio.Card, 0, len(m))
	for _, f := range m {
		k, ok := fitsKeys[f.Key]
		if !ok {
			continue
		}
		cards = append(cards, fitsio.Card{Name: k.name, Value: f.Value, Comment: k.comment})
	}
	return cards
}
