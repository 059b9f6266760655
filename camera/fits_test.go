package camera_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/nasa-jpl/psfscan/camera"
)

func frame16(rows, cols int, v int32) *camera.Image[int32] {
	pix := make([]int32, rows*cols)
	for i := range pix {
		pix[i] = v + int32(i)
	}
	return &camera.Image[int32]{Rows: rows, Cols: cols, Pix: pix}
}

func readFITS(t *testing.T, b []byte) fitsio.Image {
	t.Helper()
	f, err := fitsio.Open(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	im, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		t.Fatalf("primary HDU is %T, not an image", f.HDU(0))
	}
	return im
}

func TestWriteFITSCube(t *testing.T) {
	var buf bytes.Buffer
	err := camera.WriteFITS(&buf, nil, frame16(2, 3, 0), frame16(2, 3, 100))
	if err != nil {
		t.Fatal(err)
	}
	im := readFITS(t, buf.Bytes())
	if bp := im.Header().Bitpix(); bp != 32 {
		t.Errorf("expected bitpix 32 got %d", bp)
	}
	axes := im.Header().Axes()
	if len(axes) != 3 || axes[0] != 3 || axes[1] != 2 || axes[2] != 2 {
		t.Errorf("expected axes [3 2 2] got %v", axes)
	}
	data := make([]int32, 12)
	if err := im.Read(&data); err != nil {
		t.Fatal(err)
	}
	if len(data) != 12 || data[6] != 100 || data[11] != 105 {
		t.Errorf("unexpected data %v", data)
	}
}

func TestWriteFITSErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := camera.WriteFITS(&buf, nil); !errors.Is(err, camera.ErrNoFrames) {
		t.Errorf("expected ErrNoFrames got %v", err)
	}
	err := camera.WriteFITS(&buf, nil, frame16(2, 3, 0), frame16(3, 2, 0))
	if !errors.Is(err, camera.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for mixed dims, got %v", err)
	}
	other := &camera.Image[int16]{Rows: 2, Cols: 3, Pix: make([]int16, 6)}
	err = camera.WriteFITS(&buf, nil, frame16(2, 3, 0), other)
	if !errors.Is(err, camera.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for mixed types, got %v", err)
	}
}

func TestCubeCollectsStream(t *testing.T) {
	p := camera.FrameParameters{Size: 8, Rows: 2, Cols: 2, BytesPerPixel: 2, Dtype: camera.Int32}
	cube := camera.NewCube(p)
	stamp := make([]byte, camera.ControlFrameSize)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(stamp, uint32(10*i))
		if _, err := cube.Write(stamp); err != nil {
			t.Fatal(err)
		}
		fr := make([]byte, 8)
		binary.LittleEndian.PutUint16(fr, uint16(i))
		if _, err := cube.Write(fr); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := cube.Write(make([]byte, 7)); !errors.Is(err, camera.ErrShapeMismatch) {
		t.Errorf("expected a short frame to be refused, got %v", err)
	}
	if cube.Len() != 3 {
		t.Errorf("expected 3 frames got %d", cube.Len())
	}
	ts := cube.Timestamps()
	if len(ts) != 3 || ts[2] != 20*time.Millisecond {
		t.Errorf("unexpected timestamps %v", ts)
	}

	meta := camera.BuildMetadata(p, camera.Metrics{Frames: 3, Timestamps: ts}, time.Second)
	var buf bytes.Buffer
	extra := fitsio.Card{Name: "WAVELEN", Value: 1550.5, Comment: "nm"}
	if err := cube.Save(&buf, meta, extra); err != nil {
		t.Fatal(err)
	}
	im := readFITS(t, buf.Bytes())
	hdr := im.Header()
	for name, want := range map[string]interface{}{"BANDS": 3, "NFRAMES": 3, "TLAST": 20} {
		c := hdr.Get(name)
		if c == nil {
			t.Errorf("missing card %s", name)
			continue
		}
		if c.Value != want {
			t.Errorf("%s: expected %v got %v (%T)", name, want, c.Value, c.Value)
		}
	}
	if c := hdr.Get("WAVELEN"); c == nil {
		t.Error("missing extra card WAVELEN")
	}

	cube.Reset()
	if cube.Len() != 0 || len(cube.Timestamps()) != 0 {
		t.Error("expected an empty cube after Reset")
	}
}
