package urlfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WebCachesVersion is the name of one cache generation directory under
// webCaches, e.g. "2.24.0.0". A missing build component reads as zero.
type WebCachesVersion struct {
	Major, Minor, Patch, Build uint32
}

// ParseWebCachesVersion parses "major.minor.patch[.build]".
func ParseWebCachesVersion(s string) (WebCachesVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 && len(parts) != 4 {
		return WebCachesVersion{}, fmt.Errorf("invalid webCaches version %q", s)
	}
	if len(parts) == 3 {
		parts = append(parts, "0")
	}

	var fields [4]uint32
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return WebCachesVersion{}, fmt.Errorf("invalid webCaches version %q: %w", s, err)
		}
		fields[i] = uint32(n)
	}
	return WebCachesVersion{Major: fields[0], Minor: fields[1], Patch: fields[2], Build: fields[3]}, nil
}

// Compare returns -1, 0 or +1 comparing the components numerically.
func (v WebCachesVersion) Compare(other WebCachesVersion) int {
	a := [4]uint32{v.Major, v.Minor, v.Patch, v.Build}
	b := [4]uint32{other.Major, other.Minor, other.Patch, other.Build}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func (v WebCachesVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// LookupValidCacheDataDir returns <gameDataDir>/webCaches/<latest>/Cache/Cache_Data.
// ok is false when webCaches is missing or holds no versioned directory.
func LookupValidCacheDataDir(gameDataDir string) (dir string, ok bool, err error) {
	webCachesDir := filepath.Join(gameDataDir, "webCaches")
	entries, err := os.ReadDir(webCachesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read webCaches directory: %w", err)
	}

	var (
		latest     WebCachesVersion
		latestName string
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		version, err := ParseWebCachesVersion(entry.Name())
		if err != nil {
			continue
		}
		if latestName == "" || version.Compare(latest) > 0 {
			latest, latestName = version, entry.Name()
		}
	}
	if latestName == "" {
		return "", false, nil
	}

	return filepath.Join(webCachesDir, latestName, "Cache", "Cache_Data"), true, nil
}
