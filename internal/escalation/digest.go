package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Flort/internal/feature"
	"Flort/internal/model"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"go.uber.org/zap"
)

// Poster is the part of the notification center used by the digest
type Poster interface {
	Add(title, message string, typ model.NotificationType) (model.Notification, bool)
}

// Pending conversations waiting longer than this make the digest a warning
const digestWarnAfter = 10 * time.Minute

// Digest periodically posts a summary of pending escalations
type Digest struct {
	cron   string
	signal *Signal
	poster Poster
	gate   *feature.Gate
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

func NewDigest(cron string, signal *Signal, poster Poster, gate *feature.Gate, logger *zap.Logger) (*Digest, error) {
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid digest cron expression %q", cron)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Digest{
		cron:   cron,
		signal: signal,
		poster: poster,
		gate:   gate,
		logger: logger.Named("digest"),
		now:    time.Now,
	}, nil
}

// Start runs the schedule until ctx is cancelled
func (d *Digest) Start(ctx context.Context) {
	d.logger.Info("escalation digest scheduled", zap.String("cron", d.cron))
	go d.scheduleLoop(ctx)
}

func (d *Digest) scheduleLoop(ctx context.Context) {
	for {
		now := d.now()
		next, err := gronx.NextTickAfter(d.cron, now, false)
		if err != nil {
			d.logger.Error("failed to compute next digest tick", zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := next.Sub(now)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			d.runJob()
		case <-ctx.Done():
			return
		}
	}
}

func (d *Digest) runJob() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	if n, ok := d.RunOnce(); ok {
		d.logger.Debug("escalation digest posted", zap.String("notification_id", n.ID))
	}
}

// RunOnce posts one digest now. Nothing is posted when the digest flag is off or no escalation
// is pending.
func (d *Digest) RunOnce() (model.Notification, bool) {
	if !d.gate.IsEnabled(feature.NotificationsDigest) {
		return model.Notification{}, false
	}
	ids := d.signal.PendingIDs()
	if len(ids) == 0 {
		return model.Notification{}, false
	}

	now := d.now()
	msg := english.Plural(len(ids), "conversation", "") + " waiting for an operator"
	typ := model.NotificationInfo
	if oldest, ok := d.signal.OldestPending(); ok {
		msg += ", oldest since " + humanize.RelTime(oldest, now, "ago", "from now")
		if now.Sub(oldest) >= digestWarnAfter {
			typ = model.NotificationWarning
		}
	}
	return d.poster.Add("Escalation digest", msg, typ)
}
