package eutils

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultSearchLimit is the retmax used when SearchOptions leaves Limit unset.
const DefaultSearchLimit = 20

// ErrSearchRejected is returned when ESearch answers with an ERROR field,
// for example on an unparsable query.
var ErrSearchRejected = errors.New("search rejected")

type esearchEnvelope struct {
	Result struct {
		Count            string   `json:"count"`
		IDList           []string `json:"idlist"`
		QueryTranslation string   `json:"querytranslation"`
		WebEnv           string   `json:"webenv"`
		QueryKey         string   `json:"querykey"`
		Error            string   `json:"ERROR"`
		Errors           notices  `json:"errorlist"`
		Warnings         notices  `json:"warninglist"`
	} `json:"esearchresult"`
}

// notices are the phrase lists ESearch attaches when parts of a query were
// ignored or could not be found.
type notices struct {
	PhrasesNotFound []string `json:"phrasesnotfound"`
	FieldsNotFound  []string `json:"fieldsnotfound"`
	PhrasesIgnored  []string `json:"phrasesignored"`
	OutputMessages  []string `json:"outputmessages"`
}

func (n notices) all() []string {
	var out []string
	for _, list := range [][]string{n.PhrasesNotFound, n.FieldsNotFound, n.PhrasesIgnored, n.OutputMessages} {
		out = append(out, list...)
	}
	return out
}

// apply adds the retmax, sort and publication date parameters.
func (o *SearchOptions) apply(set func(key, value string)) {
	limit := DefaultSearchLimit
	if o != nil {
		if o.Limit > 0 {
			limit = o.Limit
		}
		if o.Sort != "" {
			set("sort", o.Sort)
		}
		// ESearch ignores a one-sided range, so both bounds are required.
		if o.MinDate != "" && o.MaxDate != "" {
			set("datetype", "pdat")
			set("mindate", o.MinDate)
			set("maxdate", o.MaxDate)
		}
	}
	set("retmax", strconv.Itoa(limit))
}

// Search runs an ESearch query and returns the matching PMIDs in rank
// order. The history server is enabled so that WebEnv and QueryKey can be
// passed to a later EFetch.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	params := pubmedParams("term", query, "usehistory", "y")
	opts.apply(params.Set)

	var env esearchEnvelope
	if err := c.getJSON(ctx, "esearch.fcgi", params, &env); err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	r := env.Result
	if r.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrSearchRejected, r.Error)
	}

	count := 0
	if r.Count != "" {
		n, err := strconv.Atoi(r.Count)
		if err != nil {
			return nil, fmt.Errorf("search response has invalid count %q: %w", r.Count, err)
		}
		count = n
	}

	if msgs := append(r.Errors.all(), r.Warnings.all()...); len(msgs) > 0 {
		c.Logger.Warn().Str("query", query).Strs("notices", msgs).Msg("search query partially applied")
	}
	c.Logger.Debug().
		Str("query", query).
		Str("translation", r.QueryTranslation).
		Int("count", count).
		Int("returned", len(r.IDList)).
		Msg("search complete")

	ids := r.IDList
	if ids == nil {
		ids = []string{}
	}
	return &SearchResult{
		Count:            count,
		IDs:              ids,
		QueryTranslation: r.QueryTranslation,
		WebEnv:           r.WebEnv,
		QueryKey:         r.QueryKey,
	}, nil
}
