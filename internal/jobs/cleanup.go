package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deckline/pairing-server-go/internal/repository"
)

// CleanupJob prunes pairing requests past their TTL and device credentials
// whose expiry is beyond the retention window. Expiry itself is enforced by
// the queries (expires_at predicates), so this job is only housekeeping —
// nothing depends on it for correctness.
type CleanupJob struct {
	pairingRepo repository.PairingRequestRepository
	deviceRepo  repository.DeviceCredentialRepository
	interval    time.Duration
	retention   time.Duration
	done        chan struct{}
}

func NewCleanupJob(
	pairingRepo repository.PairingRequestRepository,
	deviceRepo repository.DeviceCredentialRepository,
	interval time.Duration,
	retention time.Duration,
) *CleanupJob {
	return &CleanupJob{
		pairingRepo: pairingRepo,
		deviceRepo:  deviceRepo,
		interval:    interval,
		retention:   retention,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "pairing requests", j.pairingRepo.DeleteExpired)
	j.runCleanup(ctx, "device credentials", func(ctx context.Context) (int64, error) {
		return j.deviceRepo.DeleteExpired(ctx, j.retention)
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
