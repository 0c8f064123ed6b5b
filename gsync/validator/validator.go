package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/common"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/fetcher"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/puller"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// Validator picks the candidate url that belongs to an account. Probes
// run one at a time.
type Validator struct {
	logger zerolog.Logger
	cache  *URLCache
	pacer  puller.Pacer
	sleep  time.Duration
	burst  int
	ttl    time.Duration
	now    func() time.Time
}

// New returns a validator sharing cache. Candidates older than ttl are not
// probed, every burst probes are followed by a sleep.
func New(logger zerolog.Logger, cache *URLCache, pacer puller.Pacer, ttl, sleep time.Duration, burst int) *Validator {
	if burst <= 0 {
		burst = 5
	}
	return &Validator{
		logger: logger,
		cache:  cache,
		pacer:  pacer,
		sleep:  sleep,
		burst:  burst,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate returns the most recent candidate issued for uid. Candidates
// must be ordered most recent first.
func (v *Validator) Validate(ctx context.Context, f fetcher.Fetcher, facet types.Facet, uid string, candidates []types.GachaURL) (types.GachaURL, error) {
	logger := v.logger.With().Str("facet", facet.String()).Str("uid", uid).Logger()

	now := v.now()
	fresh := make([]types.GachaURL, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.CreationTime.Add(v.ttl).After(now) {
			fresh = append(fresh, candidate)
		}
	}
	logger.Debug().Int("candidates", len(candidates)).Int("fresh", len(fresh)).Msg("validating gacha urls")

	probes := 0
	for _, candidate := range fresh {
		if cached, ok := v.cache.Lookup(facet, uid, candidate); ok {
			logger.Debug().Uint32("addr", candidate.AddrOrZero()).Time("created", cached.CreationTime).Msg("gacha url cache hit")
			return cached, nil
		}

		if probes > 0 && probes%v.burst == 0 {
			logger.Debug().Int("probes", probes).Dur("duration", v.sleep).Msg("sleeping between probes")
			if err := v.pacer.Sleep(ctx, v.sleep); err != nil {
				return types.GachaURL{}, err
			}
		}
		probes++

		actual, err := f.Identity(ctx, candidate.Value)
		if err != nil {
			if common.IsTimedOut(err) {
				logger.Debug().Uint32("addr", candidate.AddrOrZero()).Msg("gacha url has timed out")
				continue
			}
			if retcodeErr, ok := common.AsRetcode(err); ok {
				return types.GachaURL{}, fmt.Errorf("%w: %w", common.ErrVacantGachaURL, retcodeErr)
			}
			return types.GachaURL{}, err
		}

		if actual != "" {
			v.cache.Store(facet, actual, candidate)
		}
		if actual != "" && actual == uid {
			return candidate, nil
		}
		logger.Debug().Str("actual", actual).Uint32("addr", candidate.AddrOrZero()).Msg("gacha url uid mismatch")
	}

	return types.GachaURL{}, common.ErrVacantGachaURL
}
