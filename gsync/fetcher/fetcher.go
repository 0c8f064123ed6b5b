package fetcher

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/common"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/dict"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// Query selects one page of a gacha category.
type Query struct {
	// GachaType overrides the category carried by the url when set.
	GachaType string
	// EndID is the cursor of cursor paged APIs, "0" for the first page.
	EndID string
	// LastTime is the newest record time already known, for snapshot APIs.
	LastTime string
}

// Fetcher speaks the gacha record protocol of one facet.
type Fetcher interface {
	Facet() types.Facet
	// FetchPage returns one page of records. An empty page ends a category.
	FetchPage(ctx context.Context, gachaURL string, query Query) ([]types.Record, error)
	// Identity returns the account id the url is signed for, empty when the
	// server had no record to tell.
	Identity(ctx context.Context, gachaURL string) (string, error)
}

// New returns the fetcher of facet. kuroEndpoint is only used by
// Wuthering Waves.
func New(facet types.Facet, client *Client, dictionary *dict.Dictionary, kuroEndpoint string) (Fetcher, error) {
	switch facet {
	case types.Genshin, types.StarRail:
		return NewHoyoverse(facet, client, dictionary)
	case types.WutheringWaves:
		return NewKuro(client, kuroEndpoint), nil
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFacet, facet)
	}
}
