package service

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
)

const expirySweepBatch = 100

// ExpirySweeper periodically removes expired pending activations in the
// background, complementing the lazy expiration applied on reads.
type ExpirySweeper struct {
	svc  *Service
	cron *cron.Cron
}

// NewExpirySweeper schedules the sweep with a cron spec such as
// "@every 1m".
func NewExpirySweeper(svc *Service, schedule string) (*ExpirySweeper, error) {
	sw := &ExpirySweeper{svc: svc, cron: cron.New()}
	if _, err := sw.cron.AddFunc(schedule, sw.sweep); err != nil {
		return nil, err
	}
	return sw, nil
}

// Start begins background sweeping.
func (sw *ExpirySweeper) Start() { sw.cron.Start() }

// Stop halts sweeping without waiting; the returned context is done once
// a running sweep has finished.
func (sw *ExpirySweeper) Stop() context.Context { return sw.cron.Stop() }

func (sw *ExpirySweeper) sweep() {
	n, err := sw.svc.SweepExpiredActivations(context.Background())
	if err != nil {
		sw.svc.log.WithError(err).Error("expiry sweep failed")
		return
	}
	if n > 0 {
		sw.svc.log.WithField("count", n).Info("expired activations removed")
	}
}

// SweepExpiredActivations removes every expired CREATED or OTP_USED
// activation, batching to bound transaction size. Returns the number of
// activations removed.
func (s *Service) SweepExpiredActivations(ctx context.Context) (int, error) {
	total := 0
	for {
		var (
			ids     []string
			pending []notification
		)
		err := s.repo.InTx(ctx, func(tx Store) error {
			var err error
			ids, err = tx.FindExpiredActivationIDs(ctx, s.now(), expirySweepBatch)
			if err != nil {
				return err
			}
			for _, id := range ids {
				a, err := tx.FindActivationForUpdate(ctx, id)
				if err != nil {
					if errors.Is(err, ErrNotFound) {
						continue
					}
					return err
				}
				if _, err := s.expireIfNeeded(ctx, tx, a, &pending); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		s.dispatch(pending)
		total += len(pending)
		if len(ids) < expirySweepBatch {
			return total, nil
		}
	}
}
