package ports

import (
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// LogInteractor reports everything through a zerolog logger, for headless runs.
type LogInteractor struct {
	logger zerolog.Logger
}

func NewLogInteractor(logger zerolog.Logger) *LogInteractor {
	return &LogInteractor{logger: logger}
}

func (l *LogInteractor) Output(message string)  { l.logger.Info().Msg(message) }
func (l *LogInteractor) Warning(message string) { l.logger.Warn().Msg(message) }

func (l *LogInteractor) Error(message string, err error) {
	l.logger.Error().Err(err).Msg(message)
}

func (l *LogInteractor) Progress(fragment types.Fragment) {
	event := l.logger.Info().Str("fragment", string(fragment.Kind))
	switch fragment.Kind {
	case types.FragmentReady:
		event = event.Str("category", fragment.Category)
	case types.FragmentPagination:
		event = event.Int("page", fragment.Page)
	case types.FragmentData:
		event = event.Int("records", len(fragment.Records))
	}
	event.Msg("pull progress")
}
