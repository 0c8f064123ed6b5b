package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/common"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// DefaultKuroLanguage is sent when the url carries no lang parameter.
const DefaultKuroLanguage = "en"

// kuroParams are the identifiers the gacha page carries in its fragment.
type kuroParams struct {
	ResourcesID string
	PlayerID    string
	RecordID    string
	ServerID    string
	GachaType   string
	Lang        string
}

type kuroRequest struct {
	CardPoolID   string `json:"cardPoolId"`
	CardPoolType string `json:"cardPoolType"`
	LanguageCode string `json:"languageCode"`
	PlayerID     string `json:"playerId"`
	RecordID     string `json:"recordId"`
	ServerID     string `json:"serverId"`
}

// Kuro fetches Wuthering Waves records. The server returns the whole
// history of a category in one response.
type Kuro struct {
	client   *Client
	endpoint string
}

// NewKuro returns a fetcher posting record queries to endpoint.
func NewKuro(client *Client, endpoint string) *Kuro {
	return &Kuro{client: client, endpoint: endpoint}
}

func (k *Kuro) Facet() types.Facet { return types.WutheringWaves }

// FetchPage returns every record of the category, newest first. Ids are
// assigned from the record time so they sort chronologically.
func (k *Kuro) FetchPage(ctx context.Context, gachaURL string, query Query) ([]types.Record, error) {
	params, err := parseKuroURL(gachaURL)
	if err != nil {
		return nil, err
	}
	gachaType := params.GachaType
	if query.GachaType != "" {
		gachaType = query.GachaType
	}

	body := kuroRequest{
		CardPoolID:   params.ResourcesID,
		CardPoolType: gachaType,
		LanguageCode: params.Lang,
		PlayerID:     params.PlayerID,
		RecordID:     params.RecordID,
		ServerID:     params.ServerID,
	}
	data, err := postJSON[[]types.WutheringWavesRecord](ctx, k.client, k.endpoint, body)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	list := *data
	assignKuroIDs(list, params.PlayerID, gachaType)

	records := make([]types.Record, 0, len(list))
	for i := range list {
		records = append(records, &list[i])
	}
	return records, nil
}

// Identity probes the url and returns the player it was issued for.
func (k *Kuro) Identity(ctx context.Context, gachaURL string) (string, error) {
	params, err := parseKuroURL(gachaURL)
	if err != nil {
		return "", err
	}
	if _, err := k.FetchPage(ctx, gachaURL, Query{}); err != nil {
		return "", err
	}
	return params.PlayerID, nil
}

func parseKuroURL(gachaURL string) (kuroParams, error) {
	u, err := url.Parse(gachaURL)
	if err != nil {
		return kuroParams{}, common.IllegalURL("%v", err)
	}
	route, rawQuery, found := strings.Cut(u.Fragment, "?")
	if !found || route != "/record" {
		return kuroParams{}, common.IllegalURL("missing #/record fragment")
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return kuroParams{}, common.IllegalURL("fragment query: %v", err)
	}

	params := kuroParams{Lang: values.Get("lang")}
	if params.Lang == "" {
		params.Lang = DefaultKuroLanguage
	}
	required := []struct {
		key  string
		dest *string
	}{
		{"resources_id", &params.ResourcesID},
		{"player_id", &params.PlayerID},
		{"record_id", &params.RecordID},
		{"svr_id", &params.ServerID},
		{"gacha_type", &params.GachaType},
	}
	for _, param := range required {
		value := values.Get(param.key)
		if value == "" {
			return kuroParams{}, common.IllegalURL("missing %s", param.key)
		}
		*param.dest = value
	}
	return params, nil
}

// assignKuroIDs fills id, uid and gacha type. The id is the record time as
// YYYYMMDDhhmmss followed by a four digit sequence within that second,
// counted from the oldest record. list is newest first.
func assignKuroIDs(list []types.WutheringWavesRecord, playerID, gachaType string) {
	sequence := make(map[string]int)
	for i := len(list) - 1; i >= 0; i-- {
		record := &list[i]
		stamp := timeDigits(record.Time)
		record.ID = fmt.Sprintf("%s%04d", stamp, sequence[stamp])
		record.UID = playerID
		record.GachaType = gachaType
		sequence[stamp]++
	}
}

func timeDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
