package summary

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultProbeTimeout bounds each health probe.
const DefaultProbeTimeout = 10 * time.Second

// Prober is an external service that can be pinged cheaply.
type Prober interface {
	Ping(ctx context.Context) error
}

// Probes are the three services reported in the summary. A nil prober is
// reported as HealthError.
type Probes struct {
	Lightning Prober
	Groq      Prober
	Resend    Prober
}

type httpStatusError interface {
	HTTPStatus() int
}

// Classify maps a probe error to a status: nil is online, an HTTP error
// response is offline and any other failure is error.
func Classify(err error) HealthStatus {
	if err == nil {
		return HealthOnline
	}
	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		return HealthOffline
	}
	return HealthError
}

// CheckHealth probes every service concurrently.
func CheckHealth(ctx context.Context, probes Probes, timeout time.Duration) APIHealth {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	var (
		health APIHealth
		wg     sync.WaitGroup
	)
	run := func(p Prober, out *HealthStatus) {
		defer wg.Done()
		if p == nil {
			*out = HealthError
			return
		}
		defer func() {
			if recover() != nil {
				*out = HealthError
			}
		}()
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		*out = Classify(p.Ping(pctx))
	}

	wg.Add(3)
	go run(probes.Lightning, &health.Lightning)
	go run(probes.Groq, &health.Groq)
	go run(probes.Resend, &health.Resend)
	wg.Wait()

	return health
}
