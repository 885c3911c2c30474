package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

// OTPSweeper clears OTP slots that expired more than grace ago. Verification
// already rejects expired codes; keeping recent slots lets it report an
// expired code as expired rather than missing.
type OTPSweeper struct {
	stores   []repository.AccountRepository
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewOTPSweeper(stores []repository.AccountRepository, interval, grace time.Duration, m *metrics.Metrics, log *logger.Logger) *OTPSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace < 0 {
		grace = 0
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OTPSweeper{
		stores:   stores,
		interval: interval,
		grace:    grace,
		now:      time.Now,
		metrics:  m,
		log:      log,
	}
}

// Start sweeps once immediately, then every interval until ctx is done.
// Runs never overlap.
func (w *OTPSweeper) Start(ctx context.Context) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(w.interval).Do(func() {
		if _, err := w.Sweep(ctx); err != nil {
			w.log.Error(err, "OTP sweep failed")
		}
	})
	if err != nil {
		w.log.Error(err, "failed to schedule OTP sweeper")
		return
	}

	scheduler.StartAsync()
	w.log.Info("OTP sweeper started", "interval", w.interval.String())

	<-ctx.Done()
	scheduler.Stop()
	w.log.Info("OTP sweeper stopped")
}

// Sweep clears slots past their grace period in every store. A failing store
// does not stop the others; their errors are joined.
func (w *OTPSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.grace)

	var (
		total int64
		errs  []error
	)
	for _, st := range w.stores {
		n, err := st.ClearExpiredOTPs(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to sweep %s OTPs: %w", st.Role(), err))
			continue
		}
		total += n
	}

	if total > 0 {
		if w.metrics != nil {
			w.metrics.OTPSweeperCleared.Add(float64(total))
		}
		w.log.Info("Cleared expired OTPs", "count", total)
	}
	return total, errors.Join(errs...)
}
