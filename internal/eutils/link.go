package eutils

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/henrybloomingdale/pubmed-records/internal/pubmed"
)

// ELink link names for the pubmed-to-pubmed relations.
const (
	linkCitedIn = "pubmed_pubmed_citedin"
	linkRefs    = "pubmed_pubmed_refs"
	linkRelated = "pubmed_pubmed"
)

type elinkEnvelope struct {
	Error    string `json:"ERROR"`
	LinkSets []struct {
		Error      string `json:"ERROR"`
		LinkSetDBs []struct {
			LinkName string      `json:"linkname"`
			Links    []elinkLink `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

type elinkLink struct {
	ID    string `json:"id"`
	Score string `json:"score,omitempty"`
}

// UnmarshalJSON accepts both link forms ELink emits: a bare ID string, and
// an {"id","score"} object when cmd=neighbor_score is requested.
func (l *elinkLink) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &l.ID); err == nil {
		return nil
	}
	type object elinkLink
	return json.Unmarshal(data, (*object)(l))
}

// CitedBy returns papers that cite the given PMID.
func (c *Client) CitedBy(ctx context.Context, pmid string) (*LinkResult, error) {
	return c.link(ctx, pmid, linkCitedIn, false)
}

// References returns papers referenced by the given PMID.
func (c *Client) References(ctx context.Context, pmid string) (*LinkResult, error) {
	return c.link(ctx, pmid, linkRefs, false)
}

// Related returns similar articles for the given PMID, most similar first,
// with their relevance scores.
func (c *Client) Related(ctx context.Context, pmid string) (*LinkResult, error) {
	return c.link(ctx, pmid, linkRelated, true)
}

func (c *Client) link(ctx context.Context, pmid, linkName string, withScores bool) (*LinkResult, error) {
	if pmid == "" {
		return nil, fmt.Errorf("PMID cannot be empty")
	}

	params := pubmedParams("dbfrom", "pubmed", "id", pmid, "linkname", linkName)
	if withScores {
		params.Set("cmd", "neighbor_score")
	}

	var env elinkEnvelope
	if err := c.getJSON(ctx, "elink.fcgi", params, &env); err != nil {
		return nil, fmt.Errorf("link request failed: %w", err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("link request for PMID %s rejected: %s", pmid, env.Error)
	}

	result := &LinkResult{SourceID: pmid, Links: []LinkItem{}}
	seen := map[string]bool{pmid: true}

	// ELink may answer with several link sets even when one linkname is
	// requested; only the matching one is used. The neighbor list of a
	// record starts with the record itself, which is dropped.
	for _, ls := range env.LinkSets {
		if ls.Error != "" {
			c.Logger.Warn().Str("pmid", pmid).Str("error", ls.Error).Msg("link set reported an error")
		}
		for _, db := range ls.LinkSetDBs {
			if db.LinkName != linkName {
				c.Logger.Debug().
					Str("pmid", pmid).
					Str("linkname", db.LinkName).
					Msg("ignoring unrequested link set")
				continue
			}
			for _, l := range db.Links {
				if seen[l.ID] {
					continue
				}
				seen[l.ID] = true
				item := LinkItem{ID: l.ID}
				if l.Score != "" {
					score, err := strconv.Atoi(l.Score)
					if err != nil {
						c.Logger.Debug().Str("pmid", l.ID).Str("score", l.Score).Msg("unparsable link score")
					}
					item.Score = score
				}
				result.Links = append(result.Links, item)
			}
		}
	}

	return result, nil
}

// LinkedRecords fetches the records of the first limit links of result and
// returns them in link order. A limit of zero or less fetches every link.
// Links that EFetch returns no record for are left out.
func (c *Client) LinkedRecords(ctx context.Context, result *LinkResult, limit int) (*pubmed.ArticleSet, error) {
	links := result.Links
	if limit > 0 && limit < len(links) {
		links = links[:limit]
	}
	if len(links) == 0 {
		return &pubmed.ArticleSet{Articles: []pubmed.Article{}}, nil
	}

	set, err := c.FetchRecords(ctx, lo.Map(links, func(l LinkItem, _ int) string { return l.ID }))
	if err != nil {
		return nil, err
	}

	byPMID := lo.KeyBy(set.Articles, func(a pubmed.Article) string { return a.PMIDValue() })
	ordered := make([]pubmed.Article, 0, len(links))
	for _, l := range links {
		if a, ok := byPMID[l.ID]; ok {
			ordered = append(ordered, a)
		}
	}
	return &pubmed.ArticleSet{Articles: ordered}, nil
}
