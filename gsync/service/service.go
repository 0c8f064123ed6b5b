package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/common"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/config"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/db"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/dict"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/fetcher"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/ports"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/puller"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/urlfinder"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/validator"
)

// DefaultGachaTypes are the categories pulled when a request names none.
var DefaultGachaTypes = map[types.Facet][]string{
	types.Genshin:        {"100", "200", "301", "302", "500"},
	types.StarRail:       {"1", "2", "11", "12"},
	types.WutheringWaves: {"1", "2", "3", "4", "5", "6", "7"},
}

// PullRequest describes one pull of an account.
type PullRequest struct {
	Facet    types.Facet
	UID      string
	GachaURL string
	// GachaTypes to pull, DefaultGachaTypes of the facet when empty.
	GachaTypes []string
	// Resume overrides the stored cursor of a gacha type.
	Resume        map[string]string
	SaveToStorage bool
}

// Service is the command boundary: locating games, validating urls and
// pulling records into the store.
type Service struct {
	logger     zerolog.Logger
	interactor ports.Interactor
	store      db.RecordStore
	cache      *validator.URLCache
	validator  *validator.Validator
	puller     *puller.Puller
	fetchers   map[types.Facet]fetcher.Fetcher
	finders    map[types.Facet]urlfinder.Finder
}

// Option customizes a Service.
type Option func(*options)

type options struct {
	pacer       puller.Pacer
	localLowDir string
	fetchers    map[types.Facet]fetcher.Fetcher
	finders     map[types.Facet]urlfinder.Finder
	cache       *validator.URLCache
}

// WithPacer replaces the timer based pacer.
func WithPacer(pacer puller.Pacer) Option {
	return func(o *options) { o.pacer = pacer }
}

// WithLocalLowDir sets where player logs are looked up.
func WithLocalLowDir(dir string) Option {
	return func(o *options) { o.localLowDir = dir }
}

// WithFetcher replaces the fetcher of f.Facet().
func WithFetcher(f fetcher.Fetcher) Option {
	return func(o *options) { o.fetchers[f.Facet()] = f }
}

// WithFinder replaces the finder of f.Facet().
func WithFinder(f urlfinder.Finder) Option {
	return func(o *options) { o.finders[f.Facet()] = f }
}

// WithURLCache shares a validated url cache between services.
func WithURLCache(cache *validator.URLCache) Option {
	return func(o *options) { o.cache = cache }
}

// New wires a service from cfg. store may be nil when records are never saved.
func New(logger zerolog.Logger, cfg *config.Config, interactor ports.Interactor, store db.RecordStore, opts ...Option) (*Service, error) {
	o := &options{
		pacer:    puller.TimerPacer{},
		fetchers: make(map[types.Facet]fetcher.Fetcher),
		finders:  make(map[types.Facet]urlfinder.Finder),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = validator.NewURLCache(cfg.TTL())
	}

	client := fetcher.NewClient(logger, cfg.GSync.HTTP.UserAgent, cfg.Timeout())
	dictionary := dict.Default()
	if err := dictionary.Err(); err != nil {
		return nil, fmt.Errorf("load dictionaries: %w", err)
	}

	for _, facet := range types.Facets {
		if _, ok := o.fetchers[facet]; !ok {
			f, err := fetcher.New(facet, client, dictionary, cfg.GSync.Kuro.RecordEndpoint)
			if err != nil {
				return nil, err
			}
			o.fetchers[facet] = f
		}
		if _, ok := o.finders[facet]; !ok {
			finder, err := urlfinder.NewFinder(logger, facet, o.localLowDir)
			if err != nil {
				return nil, err
			}
			o.finders[facet] = finder
		}
	}

	return &Service{
		logger:     logger,
		interactor: interactor,
		store:      store,
		cache:      o.cache,
		validator:  validator.New(logger, o.cache, o.pacer, cfg.TTL(), cfg.Sleep(), cfg.GSync.Pacing.Burst),
		puller:     puller.New(logger, o.pacer, cfg.Sleep(), cfg.GSync.Pacing.Burst),
		fetchers:   o.fetchers,
		finders:    o.finders,
	}, nil
}

// FindGameDataDirectories lists the installations of facet found on disk.
func (s *Service) FindGameDataDirectories(facet types.Facet) ([]string, error) {
	finder, ok := s.finders[facet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFacet, facet)
	}
	return finder.FindGameDataDirectories()
}

// FindGachaURL returns the newest url under gameDataDir that was issued for uid.
func (s *Service) FindGachaURL(ctx context.Context, facet types.Facet, uid, gameDataDir string) (types.GachaURL, error) {
	finder, ok := s.finders[facet]
	if !ok {
		return types.GachaURL{}, fmt.Errorf("%w: %s", common.ErrUnsupportedFacet, facet)
	}
	f, ok := s.fetchers[facet]
	if !ok {
		return types.GachaURL{}, fmt.Errorf("%w: %s", common.ErrUnsupportedFacet, facet)
	}

	candidates, err := finder.FindGachaURLs(gameDataDir)
	if err != nil {
		return types.GachaURL{}, fmt.Errorf("find gacha urls: %w", err)
	}
	if len(candidates) == 0 {
		s.interactor.Warning(fmt.Sprintf("No gacha url found under %s, open the gacha history in game first", gameDataDir))
		return types.GachaURL{}, common.ErrVacantGachaURL
	}

	url, err := s.validator.Validate(ctx, f, facet, uid, candidates)
	if err != nil {
		return types.GachaURL{}, err
	}
	s.interactor.Output(fmt.Sprintf("Found gacha url for %s %s", facet, uid))
	return url, nil
}

// PullAllGachaRecords pulls every requested category of an account and
// returns how many new records were saved.
func (s *Service) PullAllGachaRecords(ctx context.Context, req PullRequest) (int64, error) {
	f, ok := s.fetchers[req.Facet]
	if !ok {
		return 0, fmt.Errorf("%w: %s", common.ErrUnsupportedFacet, req.Facet)
	}
	if req.SaveToStorage && s.store == nil {
		return 0, fmt.Errorf("pull of %s %s asks to save but no record store is configured", req.Facet, req.UID)
	}

	resume, err := s.resumeCursors(ctx, req)
	if err != nil {
		return 0, err
	}

	session := uuid.New()
	logger := s.logger.With().
		Str("session", session.String()).
		Str("facet", req.Facet.String()).
		Str("uid", req.UID).
		Logger()
	logger.Info().Int("categories", len(resume)).Bool("save", req.SaveToStorage).Msg("pulling gacha records")

	var saved int64
	err = s.puller.PullAll(ctx, f, req.GachaURL, resume, func(ctx context.Context, fragment types.Fragment) error {
		s.interactor.Progress(fragment)
		if fragment.Kind != types.FragmentData || !req.SaveToStorage || len(fragment.Records) == 0 {
			return nil
		}
		n, err := s.store.SaveRecords(ctx, fragment.Records)
		if err != nil {
			return fmt.Errorf("save gacha records: %w", err)
		}
		saved += n
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64("saved", saved).Msg("pull failed")
		s.interactor.Error("Failed to pull gacha records", err)
		return saved, err
	}

	logger.Info().Int64("saved", saved).Msg("pulled gacha records")
	return saved, nil
}

// resumeCursors resolves the cursor of every requested gacha type, explicit
// overrides first, then the newest stored record.
func (s *Service) resumeCursors(ctx context.Context, req PullRequest) (map[string]string, error) {
	gachaTypes := req.GachaTypes
	if len(gachaTypes) == 0 {
		gachaTypes = DefaultGachaTypes[req.Facet]
	}

	stored := map[string]string{}
	if s.store != nil {
		var err error
		stored, err = s.store.LastCursors(ctx, req.Facet, req.UID)
		if err != nil {
			return nil, fmt.Errorf("load last cursors: %w", err)
		}
	}

	resume := make(map[string]string, len(gachaTypes))
	for _, gachaType := range gachaTypes {
		if cursor, ok := req.Resume[gachaType]; ok {
			resume[gachaType] = cursor
			continue
		}
		resume[gachaType] = stored[gachaType]
	}
	return resume, nil
}
