package refunds

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	striperefund "github.com/stripe/stripe-go/v79/refund"

	"github.com/healthband/portal/libs/db"
	"github.com/healthband/portal/services/portal-service/internal/storage"
)

// Worker drives cancelled appointments from refund_status=processing to
// completed by issuing the refund against the original payment.
type Worker struct {
	pool        *db.Pool
	repo        *storage.Repository
	logger      *slog.Logger
	stripeKey   string
	batchSize   int
	advisoryKey int64
}

type Config struct {
	StripeSecretKey string
	Interval        time.Duration
	BatchSize       int
	AdvisoryLockKey int64
}

func NewWorker(pool *db.Pool, repo *storage.Repository, logger *slog.Logger, cfg Config) *Worker {
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = 50
	}
	lockKey := cfg.AdvisoryLockKey
	if lockKey == 0 {
		// Override via env if you run multiple portal instances.
		lockKey = 7161002
	}
	return &Worker{
		pool:        pool,
		repo:        repo,
		logger:      logger,
		stripeKey:   strings.TrimSpace(cfg.StripeSecretKey),
		batchSize:   bs,
		advisoryKey: lockKey,
	}
}

func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	if w.stripeKey == "" {
		w.logger.Warn("refund worker disabled: STRIPE_SECRET_KEY missing")
		return
	}
	if interval <= 0 {
		interval = 1 * time.Minute
	}

	// Best-effort leader election: only the instance holding the
	// advisory lock processes refunds.
	for {
		if ctx.Err() != nil {
			return
		}
		var locked bool
		if err := w.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, w.advisoryKey).Scan(&locked); err != nil {
			w.logger.Error("refund worker: failed to acquire advisory lock", "err", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if !locked {
			w.logger.Info("refund worker: advisory lock held by another instance", "lock_key", w.advisoryKey)
			time.Sleep(30 * time.Second)
			continue
		}
		w.logger.Info("refund worker: advisory lock acquired", "lock_key", w.advisoryKey)
		defer func() {
			_, _ = w.pool.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, w.advisoryKey)
		}()
		break
	}

	stripe.Key = w.stripeKey
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.processOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) {
	pending, err := w.repo.ListPendingRefunds(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("refund worker: failed to list pending refunds", "err", err)
		return
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			return
		}

		// No gateway charge to reverse; the booking was settled outside
		// the payment processor. Complete the refund record directly.
		if p.PaymentRef == "" {
			if err := w.repo.MarkRefundCompleted(ctx, p.AppointmentID); err != nil {
				w.logger.Warn("refund worker: mark completed failed", "err", err, "appointment_id", p.AppointmentID)
			}
			continue
		}

		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(p.PaymentRef),
			Amount:        stripe.Int64(refundCents(p.RefundAmount)),
		}
		params.SetIdempotencyKey("refund-" + p.AppointmentID)

		ref, err := striperefund.New(params)
		if err != nil {
			w.logger.Warn("refund worker: stripe refund failed", "err", err, "appointment_id", p.AppointmentID)
			continue
		}
		if err := w.repo.MarkRefundCompleted(ctx, p.AppointmentID); err != nil {
			w.logger.Warn("refund worker: mark completed failed", "err", err, "appointment_id", p.AppointmentID)
			continue
		}
		w.logger.Info("refund issued", "appointment_id", p.AppointmentID, "refund_id", ref.ID, "amount", p.RefundAmount, "currency", p.Currency)
	}
}

// refundCents converts a major-unit amount to cents. Rounding keeps
// amounts that are not exactly representable in binary, such as
// 150.35, from being truncated a cent short.
func refundCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
