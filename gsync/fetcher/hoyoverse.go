package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/common"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/dict"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// HoyoverseEndpoint is the path every getGachaLog url contains.
const HoyoverseEndpoint = "/api/getGachaLog?"

// PageSize is how many records a cursor paged request asks for.
const PageSize = 20

// Query parameters rewritten on every request, the rest is the signed auth.
var hoyoverseRewrittenParams = []string{"page", "size", "gacha_type", "begin_id", "end_id"}

type hoyoversePage[R any] struct {
	Page   string `json:"page"`
	Size   string `json:"size"`
	Total  string `json:"total"`
	List   []R    `json:"list"`
	Region string `json:"region"`
}

// Hoyoverse fetches Genshin Impact and Star Rail records page by page.
type Hoyoverse struct {
	facet      types.Facet
	client     *Client
	dictionary *dict.Dictionary
}

// NewHoyoverse returns the fetcher of a cursor paged facet. A nil
// dictionary leaves item ids as the server sent them.
func NewHoyoverse(facet types.Facet, client *Client, dictionary *dict.Dictionary) (*Hoyoverse, error) {
	if facet != types.Genshin && facet != types.StarRail {
		return nil, fmt.Errorf("%w: %s is not a hoyoverse facet", common.ErrUnsupportedFacet, facet)
	}
	return &Hoyoverse{facet: facet, client: client, dictionary: dictionary}, nil
}

func (h *Hoyoverse) Facet() types.Facet { return h.facet }

// PageURL rebuilds gachaURL for one page, keeping its signed parameters.
func (h *Hoyoverse) PageURL(gachaURL string, query Query) (string, error) {
	start := strings.Index(gachaURL, HoyoverseEndpoint)
	if start < 0 {
		return "", common.IllegalURL("missing endpoint %s", HoyoverseEndpoint)
	}
	base := gachaURL[:start+len(HoyoverseEndpoint)]

	params, err := url.ParseQuery(gachaURL[start+len(HoyoverseEndpoint):])
	if err != nil {
		return "", common.IllegalURL("query: %v", err)
	}
	if !params.Has("gacha_type") {
		return "", common.IllegalURL("missing gacha_type")
	}

	gachaType := params.Get("gacha_type")
	if query.GachaType != "" {
		gachaType = query.GachaType
	}
	endID := params.Get("end_id")
	if query.EndID != "" {
		endID = query.EndID
	}

	for _, key := range hoyoverseRewrittenParams {
		params.Del(key)
	}
	params.Set("page", "1")
	params.Set("size", fmt.Sprint(PageSize))
	params.Set("gacha_type", gachaType)
	if endID != "" {
		params.Set("end_id", endID)
	}

	pageURL := base + params.Encode()
	if _, err := url.Parse(pageURL); err != nil {
		return "", common.IllegalURL("%v", err)
	}
	return pageURL, nil
}

func (h *Hoyoverse) FetchPage(ctx context.Context, gachaURL string, query Query) ([]types.Record, error) {
	pageURL, err := h.PageURL(gachaURL, query)
	if err != nil {
		return nil, err
	}

	switch h.facet {
	case types.Genshin:
		return fetchRecords[types.GenshinRecord](ctx, h.client, pageURL, func(r *types.GenshinRecord) {
			h.fillItemID(&r.ItemID, r.Lang, r.Name)
		})
	default:
		return fetchRecords[types.StarRailRecord](ctx, h.client, pageURL, func(r *types.StarRailRecord) {
			h.fillItemID(&r.ItemID, r.Lang, r.Name)
		})
	}
}

// Identity returns the uid of the first record of the url's own category.
func (h *Hoyoverse) Identity(ctx context.Context, gachaURL string) (string, error) {
	records, err := h.FetchPage(ctx, gachaURL, Query{})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[0].Meta().UID, nil
}

// fillItemID sets itemID from the dictionary when the name is known.
func (h *Hoyoverse) fillItemID(itemID *string, lang, name string) {
	if h.dictionary == nil {
		return
	}
	if entry, ok := h.dictionary.Lookup(h.facet, lang, name); ok {
		*itemID = entry.ItemID
	}
}

// fetchRecords decodes one page of R and passes every record to fill.
func fetchRecords[R any, P interface {
	*R
	types.Record
}](ctx context.Context, c *Client, pageURL string, fill func(P)) ([]types.Record, error) {
	page, err := getJSON[hoyoversePage[R]](ctx, c, pageURL)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}
	records := make([]types.Record, 0, len(page.List))
	for i := range page.List {
		record := P(&page.List[i])
		fill(record)
		records = append(records, record)
	}
	return records, nil
}
