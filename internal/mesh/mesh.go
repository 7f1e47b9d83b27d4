// Package mesh provides MeSH descriptor lookup via NCBI E-utilities.
package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/henrybloomingdale/pubmed-records/internal/ncbi"
)

// descriptorUIRe matches MeSH descriptor identifiers such as D005600, the
// form carried by DescriptorName UI attributes in PubMed records.
var descriptorUIRe = regexp.MustCompile(`^D\d{6,9}$`)

// MeSHRecord represents a MeSH descriptor record.
type MeSHRecord struct {
	UI                     string   `json:"ui"`
	Name                   string   `json:"name"`
	ScopeNote              string   `json:"scope_note"`
	TreeNumbers            []string `json:"tree_numbers"`
	EntryTerms             []string `json:"entry_terms"`
	PharmacologicalActions []string `json:"pharmacological_actions,omitempty"`
	Annotation             string   `json:"annotation,omitempty"`
}

// ErrNotFound is returned when ESearch matches no descriptor.
var ErrNotFound = errors.New("MeSH descriptor not found")

// Client looks up descriptors in the mesh database over a shared
// ncbi.BaseClient.
type Client struct {
	*ncbi.BaseClient
}

// NewClient wraps base, so MeSH requests share its rate limiter.
func NewClient(base *ncbi.BaseClient) *Client {
	return &Client{BaseClient: base}
}

func meshParams(kv ...string) url.Values {
	params := url.Values{"db": {"mesh"}}
	for i := 0; i+1 < len(kv); i += 2 {
		params.Set(kv[i], kv[i+1])
	}
	return params
}

// Lookup searches for a MeSH term and returns its record. A descriptor UI
// such as "D005600" is looked up by identifier instead of by name.
func (c *Client) Lookup(ctx context.Context, term string) (*MeSHRecord, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("MeSH term cannot be empty")
	}

	query := term
	if descriptorUIRe.MatchString(term) {
		query += "[MeSH Unique ID]"
	}

	body, err := c.DoGet(ctx, "esearch.fcgi", meshParams("term", query, "retmode", "json"))
	if err != nil {
		return nil, fmt.Errorf("MeSH search failed: %w", err)
	}
	var search struct {
		Result struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("parsing MeSH search response: %w", err)
	}

	ids := search.Result.IDList
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, term)
	case 1:
	default:
		c.Logger.Debug().
			Str("term", term).
			Strs("uids", ids).
			Msg("MeSH search matched several descriptors; using the first")
	}
	return c.fetchRecord(ctx, ids[0])
}

func (c *Client) fetchRecord(ctx context.Context, uid string) (*MeSHRecord, error) {
	body, err := c.DoGet(ctx, "efetch.fcgi", meshParams("id", uid, "rettype", "full", "retmode", "text"))
	if err != nil {
		return nil, fmt.Errorf("MeSH fetch failed: %w", err)
	}

	record := parseMeSHRecord(string(body))
	if record.UI == "" && record.Name == "" {
		return nil, fmt.Errorf("MeSH record %s has no descriptor fields", uid)
	}
	return &record, nil
}

func addEntryTerm(r *MeSHRecord, v string) {
	// "Term|T047|NON|EQV"
	term, _, _ := strings.Cut(v, "|")
	r.EntryTerms = append(r.EntryTerms, strings.TrimSpace(term))
}

// recordFields assigns each recognised "KEY = value" line of the full text
// format. Other keys are ignored.
var recordFields = map[string]func(r *MeSHRecord, v string){
	"MH":          func(r *MeSHRecord, v string) { r.Name = v },
	"UI":          func(r *MeSHRecord, v string) { r.UI = v },
	"MS":          func(r *MeSHRecord, v string) { r.ScopeNote = v },
	"AN":          func(r *MeSHRecord, v string) { r.Annotation = v },
	"MN":          func(r *MeSHRecord, v string) { r.TreeNumbers = append(r.TreeNumbers, v) },
	"PA":          func(r *MeSHRecord, v string) { r.PharmacologicalActions = append(r.PharmacologicalActions, v) },
	"ENTRY":       addEntryTerm,
	"PRINT ENTRY": addEntryTerm,
}

// parseMeSHRecord reads NCBI's MeSH full text format.
func parseMeSHRecord(text string) MeSHRecord {
	record := MeSHRecord{TreeNumbers: []string{}, EntryTerms: []string{}}
	for line := range strings.Lines(text) {
		key, value, ok := strings.Cut(strings.TrimSpace(line), " = ")
		if !ok {
			continue
		}
		if set, known := recordFields[strings.TrimSpace(key)]; known {
			set(&record, strings.TrimSpace(value))
		}
	}
	record.EntryTerms = lo.Uniq(record.EntryTerms)
	return record
}
