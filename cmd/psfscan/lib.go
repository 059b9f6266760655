package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/psfscan/camera"
	"github.com/nasa-jpl/psfscan/generichttp"
	httpcam "github.com/nasa-jpl/psfscan/generichttp/camera"
	"github.com/nasa-jpl/psfscan/imgrec"
	"github.com/nasa-jpl/psfscan/liveview"
	"github.com/nasa-jpl/psfscan/scan"
	"github.com/nasa-jpl/psfscan/server/middleware/locker"
	"github.com/nasa-jpl/psfscan/xeneth"
)

// driver returns the simulator when mocking, otherwise the SDK
func driver(cfg config) (xeneth.Driver, error) {
	if cfg.Mock {
		log.Println("using a simulated camera")
		return xeneth.NewSim(320, 256), nil
	}
	return xeneth.System()
}

// openCamera opens the camera and applies the bootup args
func openCamera(cfg config) (*camera.Camera, error) {
	drv, err := driver(cfg)
	if err != nil {
		return nil, err
	}
	path := cfg.CameraPath
	if cfg.Mock && path == "" {
		path = "sim://"
	}
	c := camera.New(drv, cfg.Calibration, cfg.Engine)
	if err = c.Open(path, cfg.SoftwareCorrection); err != nil {
		return nil, err
	}
	if name, err := c.GetStringProperty("ModelName"); err == nil {
		log.Printf("connected to %s\n", name)
	}
	if err = c.Configure(cfg.BootupArgs); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func newRecorder(cfg config) *imgrec.Recorder {
	args := cfg.Recorder
	return &imgrec.Recorder{Root: args.Root, Prefix: args.Prefix, Enabled: args.Enabled}
}

// BuildMux wraps the camera in HTTP, behind a lock, mounted at cfg.Root
func BuildMux(cfg config, c *camera.Camera, rec *imgrec.Recorder, live *liveview.Hub) chi.Router {
	w := httpcam.NewHTTPCamera(c, rec, live)
	lock := locker.New()
	locker.Inject(w, lock)

	hndlrS := generichttp.SubMuxSanitize(cfg.Root)
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	mux := chi.NewRouter()
	mux.Use(lock.Check)
	w.RT().Bind(mux)
	root.Mount(hndlrS, mux)
	return root
}

// interrupted returns a context which is cancelled on ctrl+c
func interrupted() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func run(cfg config) {
	c, err := openCamera(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()
	var live *liveview.Hub
	if cfg.Live {
		live = liveview.NewHub()
		defer live.Close()
	}
	mux := BuildMux(cfg, c, newRecorder(cfg), live)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	ctx, stop := interrupted()
	defer stop()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	log.Println("now listening for requests at ", cfg.Addr+generichttp.SubMuxSanitize(cfg.Root))
	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println(err)
	}
}

func spinner(suffix string) (*yacspin.Spinner, error) {
	return yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " " + suffix,
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
}

// record streams to disk for d, with the ENVI header beside the raw file
func record(cfg config, d time.Duration) {
	rec := newRecorder(cfg)
	if rec.Root == "" {
		log.Fatal("Recorder.Root must be set to record")
	}
	c, err := openCamera(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	rec.Incr()
	if err = c.AddHandler(rec.File("raw"), false); err != nil {
		log.Fatal(err)
	}
	spin, err := spinner("recording")
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := interrupted()
	defer stop()

	if err = c.StartRecording(); err != nil {
		log.Fatal(err)
	}
	spin.Start()
	deadline := time.Now().Add(d)
	for err == nil && ctx.Err() == nil {
		left := time.Until(deadline)
		if left <= 0 {
			break
		}
		if left > time.Second {
			left = time.Second
		}
		err = c.WaitRecordingContext(ctx, left)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		spin.Message(fmt.Sprintf("%d frames, %v left", c.Metrics().Frames, time.Until(deadline).Round(time.Second)))
	}
	meta, serr := c.StopRecording()
	if err == nil {
		err = serr
	}
	if meta != nil {
		if herr := rec.WriteENVIHeader(meta); herr != nil && err == nil {
			err = herr
		}
	}
	path := rec.Path("raw")
	if err != nil {
		spin.StopFailMessage(err.Error())
		spin.StopFail()
		os.Exit(1)
	}
	bands, _ := meta.Get("bands")
	spin.StopMessage(fmt.Sprintf("%v frames in %s", bands, path))
	spin.Stop()
}

// logTuner stands in for the laser when mocking
type logTuner struct{}

func (logTuner) SetWavelength(ctx context.Context, nm float64) error {
	log.Printf("laser would tune to %g nm\n", nm)
	return nil
}

func runScan(cfg config) {
	rec := newRecorder(cfg)
	if rec.Root == "" {
		log.Fatal("Recorder.Root must be set to scan")
	}
	var tuner scan.Tuner = scan.HTTPTuner{URL: cfg.Laser.URL, Retries: cfg.Laser.Retries, Backoff: cfg.Laser.Backoff}
	if cfg.Mock || cfg.Laser.URL == "" {
		tuner = logTuner{}
	}
	c, err := openCamera(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()
	p, err := c.FrameParameters()
	if err != nil {
		log.Fatal(err)
	}
	waves, err := cfg.Scan.Wavelengths()
	if err != nil {
		log.Fatal(err)
	}

	spin, err := spinner("scanning")
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := interrupted()
	defer stop()

	s := scan.Scanner{Cam: c, Laser: tuner, Plan: cfg.Scan}
	spin.Start()
	err = s.Run(ctx, func(st scan.Step) error {
		meta := camera.BuildMetadata(p, camera.Metrics{Frames: 1}, 0)
		cards := append(meta.Cards(),
			fitsio.Card{Name: "WAVELEN", Value: st.Wavelength, Comment: "laser wavelength, nm"},
			fitsio.Card{Name: "INTTIME", Value: cfg.Scan.IntegrationTime, Comment: "integration time, us"})
		rec.Incr()
		if err := camera.WriteFITS(rec.File("fits"), cards, st.Frame); err != nil {
			return err
		}
		rec.Incr()
		spin.Message(fmt.Sprintf("%d/%d, %g nm", st.Index+1, len(waves), st.Wavelength))
		return nil
	})
	if err != nil {
		spin.StopFailMessage(err.Error())
		spin.StopFail()
		os.Exit(1)
	}
	spin.StopMessage(fmt.Sprintf("%d wavelengths written under %s", len(waves), rec.Root))
	spin.Stop()
}
