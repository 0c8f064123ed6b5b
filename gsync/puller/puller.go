package puller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/common"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/fetcher"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// FirstEndID is the cursor requesting the newest page of a category.
const FirstEndID = "0"

// EmitFunc consumes one fragment. Returning an error aborts the pull.
type EmitFunc func(ctx context.Context, fragment types.Fragment) error

// Puller walks every requested category of one gacha url and streams the
// progress through a single slot channel.
type Puller struct {
	logger zerolog.Logger
	pacer  Pacer
	sleep  time.Duration
	burst  int
}

// New returns a puller sleeping sleep between pages and an extra sleep
// every burst pages.
func New(logger zerolog.Logger, pacer Pacer, sleep time.Duration, burst int) *Puller {
	if burst <= 0 {
		burst = 5
	}
	return &Puller{logger: logger, pacer: pacer, sleep: sleep, burst: burst}
}

// PullAll pulls the categories of resume in sorted order. resume maps a
// gacha type to the newest cursor already stored, "" when none: the record
// id for cursor paged facets, the record time for snapshot facets.
// Fragments reach emit in order, one at a time.
func (p *Puller) PullAll(ctx context.Context, f fetcher.Fetcher, gachaURL string, resume map[string]string, emit EmitFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fragments := make(chan types.Fragment, 1)
	var (
		wg          conc.WaitGroup
		producerErr error
	)
	wg.Go(func() {
		defer close(fragments)
		producerErr = p.produce(ctx, f, gachaURL, resume, fragments)
	})

	var consumerErr error
	for fragment := range fragments {
		if err := emit(ctx, fragment); err != nil {
			consumerErr = err
			cancel()
			break
		}
	}

	if recovered := wg.WaitAndRecover(); recovered != nil {
		return fmt.Errorf("%w: %v", common.ErrFetcherChannelJoin, recovered.Value)
	}
	if consumerErr != nil {
		return fmt.Errorf("%w: %w", common.ErrFetcherChannelSend, consumerErr)
	}
	return producerErr
}

func (p *Puller) produce(ctx context.Context, f fetcher.Fetcher, gachaURL string, resume map[string]string, out chan<- types.Fragment) error {
	categories := make([]string, 0, len(resume))
	for category := range resume {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	logger := p.logger.With().Str("facet", f.Facet().String()).Logger()
	for _, category := range categories {
		s := &session{
			puller:   p,
			logger:   logger.With().Str("category", category).Logger(),
			fetcher:  f,
			url:      gachaURL,
			category: category,
			cursor:   resume[category],
			out:      out,
		}

		var err error
		switch f.Facet().Paging() {
		case types.PagingSnapshot:
			err = s.pullSnapshot(ctx)
		default:
			err = s.pullCursor(ctx)
		}
		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, common.ErrFetcherChannelSend) {
				return fmt.Errorf("%w: %w", common.ErrFetcherChannelSend, err)
			}
			return err
		}
	}
	return nil
}

// session is the state of one category pull.
type session struct {
	puller   *Puller
	logger   zerolog.Logger
	fetcher  fetcher.Fetcher
	url      string
	category string
	cursor   string
	out      chan<- types.Fragment
}

func (s *session) send(ctx context.Context, fragment types.Fragment) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrFetcherChannelSend, err)
	}
	select {
	case s.out <- fragment:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", common.ErrFetcherChannelSend, ctx.Err())
	}
}

func (s *session) sleep(ctx context.Context) error {
	s.logger.Debug().Dur("duration", s.puller.sleep).Msg("sleeping")
	return s.puller.pacer.Sleep(ctx, s.puller.sleep)
}

func (s *session) ready(ctx context.Context) error {
	if err := s.send(ctx, types.ReadyFragment(s.category)); err != nil {
		return err
	}
	return s.sleep(ctx)
}

// pullCursor pages newest to oldest until an empty page or a page that
// reaches the stored cursor.
func (s *session) pullCursor(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	endID := FirstEndID
	for page := 1; ; page++ {
		if page%s.puller.burst == 0 {
			if err := s.send(ctx, types.SleepingFragment()); err != nil {
				return err
			}
			if err := s.sleep(ctx); err != nil {
				return err
			}
		}

		if err := s.send(ctx, types.PaginationFragment(page)); err != nil {
			return err
		}
		records, err := s.fetcher.FetchPage(ctx, s.url, fetcher.Query{GachaType: s.category, EndID: endID})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			s.logger.Debug().Int("page", page).Msg("category exhausted")
			break
		}
		endID = records[len(records)-1].Meta().ID

		kept, dropped := TrimByCursor(records, s.cursor)
		s.logger.Debug().Int("page", page).Int("records", len(records)).Int("kept", len(kept)).Msg("fetched page")
		if err := s.send(ctx, types.DataFragment(kept)); err != nil {
			return err
		}
		if dropped {
			s.logger.Debug().Str("cursor", s.cursor).Msg("reached stored cursor")
			break
		}
		if err := s.sleep(ctx); err != nil {
			return err
		}
	}

	return s.send(ctx, types.FinishedFragment())
}

// pullSnapshot fetches the whole category once and keeps what is newer
// than the stored time.
func (s *session) pullSnapshot(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.send(ctx, types.PaginationFragment(1)); err != nil {
		return err
	}

	records, err := s.fetcher.FetchPage(ctx, s.url, fetcher.Query{GachaType: s.category, LastTime: s.cursor})
	if err != nil {
		return err
	}
	kept := TrimByTime(records, s.cursor)
	s.logger.Debug().Int("records", len(records)).Int("kept", len(kept)).Msg("fetched snapshot")

	if err := s.send(ctx, types.DataFragment(kept)); err != nil {
		return err
	}
	return s.send(ctx, types.FinishedFragment())
}

// TrimByCursor keeps the records whose id is lexically greater than cursor
// and reports whether any record was dropped. An empty cursor keeps all.
func TrimByCursor(records []types.Record, cursor string) ([]types.Record, bool) {
	if cursor == "" {
		return records, false
	}
	kept := make([]types.Record, 0, len(records))
	dropped := false
	for _, record := range records {
		if record.Meta().ID > cursor {
			kept = append(kept, record)
		} else {
			dropped = true
		}
	}
	return kept, dropped
}

// TrimByTime keeps the records newer than lastTime. Times are compared as
// wall clock instants in RecordTimeLayout or RFC 3339. A record whose time
// does not parse is kept. When lastTime itself does not parse, times are
// compared lexically.
func TrimByTime(records []types.Record, lastTime string) []types.Record {
	if lastTime == "" {
		return records
	}
	last, lastOK := parseRecordTime(lastTime)

	kept := make([]types.Record, 0, len(records))
	for _, record := range records {
		value := record.Meta().Time
		if !lastOK {
			if value > lastTime {
				kept = append(kept, record)
			}
			continue
		}
		if t, ok := parseRecordTime(value); !ok || t.After(last) {
			kept = append(kept, record)
		}
	}
	return kept
}

// parseRecordTime reads value as a wall clock time, ignoring any zone.
func parseRecordTime(value string) (time.Time, bool) {
	if t, err := time.Parse(types.RecordTimeLayout, value); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
}
