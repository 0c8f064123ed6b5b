package urlfinder

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/common"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/fetcher"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// KuroEndpoint is the signature of a logged Wuthering Waves gacha url.
const KuroEndpoint = "aki/gacha/index.html#/record?"

const maxLogLineSize = 1 << 20

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// Finder locates a facet's game installations and recovers candidate
// gacha urls from them.
type Finder interface {
	Facet() types.Facet
	FindGameDataDirectories() ([]string, error)
	FindGachaURLs(gameDataDir string) ([]types.GachaURL, error)
}

// NewFinder returns the finder of facet. localLowDir is the directory the
// games write their player logs to, empty means %USERPROFILE%/AppData/LocalLow.
func NewFinder(logger zerolog.Logger, facet types.Facet, localLowDir string) (Finder, error) {
	if localLowDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		localLowDir = filepath.Join(home, "AppData", "LocalLow")
	}
	logger = logger.With().Str("facet", facet.String()).Logger()

	switch facet {
	case types.Genshin:
		return &hoyoverseFinder{
			facet:  facet,
			logger: logger,
			logs: []playerLog{
				{filepath.Join(localLowDir, "miHoYo", "Genshin Impact", "output_log.txt"), "/GenshinImpact_Data/"},
				{filepath.Join(localLowDir, "miHoYo", "原神", "output_log.txt"), "/YuanShen_Data/"},
			},
		}, nil
	case types.StarRail:
		return &hoyoverseFinder{
			facet:  facet,
			logger: logger,
			logs: []playerLog{
				{filepath.Join(localLowDir, "Cognosphere", "Star Rail", "Player.log"), "/StarRail_Data/"},
				{filepath.Join(localLowDir, "miHoYo", "崩坏：星穹铁道", "Player.log"), "/StarRail_Data/"},
			},
		}, nil
	case types.WutheringWaves:
		return &kuroFinder{logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFacet, facet)
	}
}

type playerLog struct {
	path    string
	keyword string
}

type hoyoverseFinder struct {
	facet  types.Facet
	logger zerolog.Logger
	logs   []playerLog
}

func (f *hoyoverseFinder) Facet() types.Facet { return f.facet }

func (f *hoyoverseFinder) FindGameDataDirectories() ([]string, error) {
	var directories []string
	for _, log := range f.logs {
		dir, ok, err := lookupPathLineFromKeyword(log.path, log.keyword)
		if err != nil {
			return nil, err
		}
		if ok {
			f.logger.Debug().Str("log", log.path).Str("dir", dir).Msg("found game data directory")
			directories = append(directories, dir)
		}
	}
	return directories, nil
}

func (f *hoyoverseFinder) FindGachaURLs(gameDataDir string) ([]types.GachaURL, error) {
	cacheDataDir, ok, err := LookupValidCacheDataDir(gameDataDir)
	if err != nil || !ok {
		return nil, err
	}
	return ExtractGachaURLs(f.logger, cacheDataDir, fetcher.HoyoverseEndpoint, GachaTypeMarker)
}

// lookupPathLineFromKeyword finds the first line of the log at path that
// mentions keyword and returns the absolute windows path ending with it.
func lookupPathLineFromKeyword(path, keyword string) (string, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("open player log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		end := strings.Index(line, keyword)
		if end < 0 {
			continue
		}
		// The drive letter sits right before the last colon preceding the keyword
		colon := strings.LastIndex(line[:end], ":")
		if colon < 1 {
			continue
		}
		return filepath.Clean(line[colon-1 : end+len(keyword)]), true, nil
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("scan player log: %w", err)
	}
	return "", false, nil
}

// kuroFinder reads gacha urls from the client log of Wuthering Waves.
type kuroFinder struct {
	logger zerolog.Logger
}

func (f *kuroFinder) Facet() types.Facet { return types.WutheringWaves }

// FindGameDataDirectories returns nothing, the launcher does not log the
// install location anywhere readable.
func (f *kuroFinder) FindGameDataDirectories() ([]string, error) {
	return nil, nil
}

// FindGachaURLs returns the gacha urls logged by the client, most recent
// first. They carry the modification time of the log.
func (f *kuroFinder) FindGachaURLs(gameDataDir string) ([]types.GachaURL, error) {
	path := filepath.Join(gameDataDir, "Client", "Saved", "Logs", "Client.log")
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open client log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat client log: %w", err)
	}

	var found []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, KuroEndpoint) {
			continue
		}
		for _, match := range urlPattern.FindAllString(line, -1) {
			if strings.Contains(match, KuroEndpoint) {
				found = append(found, match)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan client log: %w", err)
	}

	seen := make(map[string]struct{}, len(found))
	result := make([]types.GachaURL, 0, len(found))
	for i := len(found) - 1; i >= 0; i-- {
		if _, ok := seen[found[i]]; ok {
			continue
		}
		seen[found[i]] = struct{}{}
		result = append(result, types.GachaURL{CreationTime: info.ModTime(), Value: found[i]})
	}

	f.logger.Debug().Str("log", path).Int("urls", len(result)).Msg("extracted gacha urls from client log")
	return result, nil
}
