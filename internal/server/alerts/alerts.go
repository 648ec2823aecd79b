// Package alerts delivers lockout notifications. A Dispatcher stores the
// captured frame as a snapshot and fans the alert out to every configured
// notifier; delivery is best effort and bounded by a timeout.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/logging"
	"github.com/dmitrijs2005/visionlock/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Alert describes one lockout episode.
type Alert struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	At          time.Time `json:"at"`
	SnapshotKey string    `json:"snapshot_key,omitempty"`
	SnapshotURL string    `json:"snapshot_url,omitempty"`
}

// SnapshotStore keeps the frame attached to an alert and returns a link
// an administrator can open.
type SnapshotStore interface {
	Store(ctx context.Context, id string, image []byte) (key, url string, err error)
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert, image []byte) error
}

type Dispatcher struct {
	snapshots SnapshotStore
	notifiers []Notifier
	timeout   time.Duration
	log       logging.Logger
	now       func() time.Time
}

// NewDispatcher builds a Dispatcher. snapshots may be nil.
func NewDispatcher(snapshots SnapshotStore, notifiers []Notifier, timeout time.Duration, log logging.Logger) *Dispatcher {
	return &Dispatcher{
		snapshots: snapshots,
		notifiers: notifiers,
		timeout:   timeout,
		log:       log.With("module", "alerts"),
		now:       time.Now,
	}
}

// Send implements the session alert sink. The returned error joins every
// sink failure; callers are expected to log it and carry on.
func (d *Dispatcher) Send(ctx context.Context, image []byte, label string) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	a := Alert{ID: uuid.NewString(), Label: label, At: d.now().UTC()}

	var errs []error
	if d.snapshots != nil && len(image) > 0 {
		key, url, err := d.snapshots.Store(ctx, a.ID, image)
		metrics.RecordAlert("snapshot", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot: %w", err))
		} else {
			a.SnapshotKey, a.SnapshotURL = key, url
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, n := range d.notifiers {
		g.Go(func() error {
			err := n.Notify(ctx, a, image)
			metrics.RecordAlert(n.Name(), err)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	d.log.Warn(ctx, "lockout alert", "alert_id", a.ID, "label", label, "snapshot", a.SnapshotKey, "failures", len(errs))
	return errors.Join(errs...)
}
