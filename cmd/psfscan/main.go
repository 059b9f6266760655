package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/nasa-jpl/psfscan/camera"
	"github.com/nasa-jpl/psfscan/scan"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "psfscan.yml"

	// EnvPrefix marks environment variables which override the config file
	EnvPrefix = "PSFSCAN_"

	k = koanf.New(".")
)

type recorder struct {
	// Root is the root folder to write to
	Root string `koanf:"Root" yaml:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `koanf:"Prefix" yaml:"Prefix"`

	// Enabled turns recording on at bootup
	Enabled bool `koanf:"Enabled" yaml:"Enabled"`
}

type laser struct {
	// URL is the wavelength route of the laser server, empty to skip tuning
	URL string `koanf:"URL" yaml:"URL"`

	// Retries is how many times a failed tuning request is retried
	Retries uint64 `koanf:"Retries" yaml:"Retries"`

	// Backoff is the wait between those retries
	Backoff time.Duration `koanf:"Backoff" yaml:"Backoff"`
}

type config struct {
	Addr               string                 `koanf:"Addr" yaml:"Addr"`
	Root               string                 `koanf:"Root" yaml:"Root"`
	CameraPath         string                 `koanf:"CameraPath" yaml:"CameraPath"`
	Calibration        string                 `koanf:"Calibration" yaml:"Calibration"`
	SoftwareCorrection bool                   `koanf:"SoftwareCorrection" yaml:"SoftwareCorrection"`
	Mock               bool                   `koanf:"Mock" yaml:"Mock"`
	Live               bool                   `koanf:"Live" yaml:"Live"`
	Recorder           recorder               `koanf:"Recorder" yaml:"Recorder"`
	Engine             camera.Config          `koanf:"Engine" yaml:"Engine"`
	Laser              laser                  `koanf:"Laser" yaml:"Laser"`
	Scan               scan.Plan              `koanf:"Scan" yaml:"Scan"`
	BootupArgs         map[string]interface{} `koanf:"BootupArgs" yaml:"BootupArgs"`
}

func defaults() config {
	return config{
		Addr:       ":8000",
		Root:       "/",
		CameraPath: "cam://0",
		Live:       true,
		Recorder:   recorder{Prefix: "psf"},
		Engine:     camera.DefaultConfig(),
		Laser:      laser{Retries: 3, Backoff: 250 * time.Millisecond},
		Scan:       scan.DefaultPlan(),
		BootupArgs: map[string]interface{}{
			"IntegrationTime": 1000,
			"AutoModeUpdate":  false,
		},
	}
}

// envKey maps PSFSCAN_RECORDER_ROOT onto the existing key Recorder.Root
func envKey(s string) string {
	key := strings.Replace(strings.TrimPrefix(s, EnvPrefix), "_", ".", -1)
	for _, have := range k.Keys() {
		if strings.EqualFold(have, key) {
			return have
		}
	}
	return key
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		log.Fatalf("error loading environment: %v", err)
	}
}

func loadconf() config {
	c := config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	return c
}

func root() {
	str := `psfscan drives a Xenics XevaCam for point spread function measurements.
It serves the camera over HTTP, records continuous streams to disk,
and steps a tunable laser through a wavelength scan.

Usage:
	psfscan <command>

Commands:
	run
	record <duration>
	scan
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `psfscan is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Any key may also be
overridden by an environment variable, PSFSCAN_ADDR or PSFSCAN_RECORDER_ROOT for example.
The command mkconf generates the configuration file with the default values.

CameraPath is the Xeneth URL of the camera, cam://0 for the first one.
Calibration is the path to a .xca pack, and SoftwareCorrection turns on
software correction when it is loaded.

Mock uses a simulated camera, and skips the laser, so everything can be
tried without hardware.  Builds without the xeneth tag always need Mock.

If for some reason there is an error during bootup, it may be that a property is not supported by the camera.
Modify the BootupArgs portion of the config to remove the offending parameters.

run serves the camera under Root at Addr.  GET <Root>/endpoints lists the routes.
record <duration> streams to <Recorder.Root>/yyyy-mm-dd/<Prefix>NNNNNN.raw with
an ENVI .hdr beside it.  Durations look like 10s or 1m30s.
scan visits the wavelengths of the Scan section and writes one FITS file
per wavelength through the recorder.`
	fmt.Println(str)
}

func mkconf() {
	c := loadconf()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := loadconf()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("psfscan version %v\n", Version)
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run(loadconf())
		return
	case "record":
		if len(args) < 3 {
			log.Fatal("record needs a duration, e.g. psfscan record 10s")
		}
		d, err := time.ParseDuration(args[2])
		if err != nil {
			log.Fatal(err)
		}
		record(loadconf(), d)
		return
	case "scan":
		runScan(loadconf())
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
