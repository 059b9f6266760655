package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/nasa-jpl/psfscan/server"
)

// HTTPTuner tunes a laser served by a lab HTTP server, by POSTing
// {"f64": nm} to URL
type HTTPTuner struct {
	// URL is the full address of the wavelength route,
	// e.g. http://laser:8000/laser/wvl/center
	URL string

	// Client is used for requests, http.DefaultClient if nil
	Client *http.Client

	// Retries is how many times a failed request is retried
	Retries uint64

	// Backoff is the wait between retries
	Backoff time.Duration
}

func (t HTTPTuner) post(ctx context.Context, nm float64) error {
	body, err := json.Marshal(server.FloatT{F64: nm})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("laser replied %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

// SetWavelength implements Tuner
func (t HTTPTuner) SetWavelength(ctx context.Context, nm float64) error {
	wait := t.Backoff
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), t.Retries), ctx)
	op := func() error { return t.post(ctx, nm) }
	notify := func(err error, d time.Duration) {
		log.Printf("tuning to %g nm failed, retrying in %v: %v\n", nm, d, err)
	}
	return backoff.RetryNotify(op, b, notify)
}
