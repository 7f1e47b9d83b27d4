package eutils

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/henrybloomingdale/pubmed-records/internal/pubmed"
)

// Fetch retrieves full article details for the given PMIDs, flattened for
// display and export.
func (c *Client) Fetch(ctx context.Context, pmids []string) ([]Article, error) {
	set, err := c.FetchRecords(ctx, pmids)
	if err != nil {
		return nil, err
	}
	return ArticlesFromSet(set), nil
}

// FetchRecords retrieves the given PMIDs and returns the parsed record graph.
func (c *Client) FetchRecords(ctx context.Context, pmids []string) (*pubmed.ArticleSet, error) {
	if len(pmids) == 0 {
		return nil, fmt.Errorf("at least one PMID is required")
	}

	params := pubmedParams("id", strings.Join(pmids, ","), "rettype", "xml", "retmode", "xml")

	body, err := c.DoGet(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("fetch request failed: %w", err)
	}

	set, err := pubmed.Read(body, pubmed.WithLogger(c.Logger))
	if err != nil {
		return nil, fmt.Errorf("parsing PubMed XML: %w", err)
	}
	return set, nil
}

// ArticlesFromSet flattens parsed records into Article summaries.
func ArticlesFromSet(set *pubmed.ArticleSet) []Article {
	if set == nil {
		return []Article{}
	}
	return lo.Map(set.Articles, func(pa pubmed.Article, _ int) Article {
		return convertArticle(pa)
	})
}

func convertArticle(pa pubmed.Article) Article {
	a := Article{
		PMID:             pa.PMIDValue(),
		Authors:          []Author{},
		PublicationTypes: []string{},
	}

	if mc := pa.MedlineCitation; mc != nil {
		if body := mc.Article; body != nil {
			convertBody(&a, body)
		}

		for _, mh := range mc.MeshHeadings {
			if mh.Descriptor == nil {
				continue
			}
			term := MeSHTerm{
				Descriptor:   pubmed.Deref(mh.Descriptor.Value),
				DescriptorUI: pubmed.Deref(mh.Descriptor.UI),
				MajorTopic:   pubmed.Deref(mh.Descriptor.MajorTopic) == "Y",
			}
			for _, q := range mh.Qualifiers {
				term.Qualifiers = append(term.Qualifiers, pubmed.Deref(q.Value))
			}
			a.MeSHTerms = append(a.MeSHTerms, term)
		}
	}

	if doi, ok := pa.PubmedData.ArticleID("doi"); ok {
		a.DOI = doi
	}
	if pmc, ok := pa.PubmedData.ArticleID("pmc"); ok {
		a.PMCID = pmc
	}
	if pd := pa.PubmedData; pd != nil {
		a.PublicationStatus = pubmed.Deref(pd.PublicationStatus)
	}

	return a
}

func convertBody(a *Article, body *pubmed.ArticleBody) {
	a.Title = pubmed.Deref(body.Title)
	a.Pages = pubmed.Deref(body.Pagination)
	a.Language = pubmed.Deref(body.Language)

	if j := body.Journal; j != nil {
		a.Journal = pubmed.Deref(j.Title)
		a.JournalAbbrev = pubmed.Deref(j.ISOAbbreviation)
		if j.ISSN != nil {
			a.ISSN = pubmed.Deref(j.ISSN.Value)
		}
		if issue := j.JournalIssue; issue != nil {
			a.Volume = pubmed.Deref(issue.Volume)
			a.Issue = pubmed.Deref(issue.Issue)
			if d := issue.PubDate; d != nil {
				a.Year = d.YearValue()
				a.Month = pubmed.Deref(d.Month)
			}
		}
	}

	// The article DOI normally comes from PubmedData; ELocationID covers
	// records that only carry it there.
	if e := body.ELocationID; e != nil && pubmed.Deref(e.Type) == "doi" && pubmed.Deref(e.Valid) != "N" {
		a.DOI = pubmed.Deref(e.Value)
	}

	if abs := body.Abstract; abs != nil {
		for _, at := range abs.Texts {
			a.AbstractSections = append(a.AbstractSections, AbstractSection{
				Label: pubmed.Deref(at.Label),
				Text:  at.Plain(),
			})
		}
	}
	if len(a.AbstractSections) > 0 {
		parts := lo.Map(a.AbstractSections, func(s AbstractSection, _ int) string {
			if s.Label != "" {
				return s.Label + ": " + s.Text
			}
			return s.Text
		})
		a.Abstract = strings.Join(parts, "\n\n")
	}

	for _, au := range body.Authors {
		if pubmed.Deref(au.Valid) == "N" {
			continue
		}
		author := Author{
			LastName:       pubmed.Deref(au.LastName),
			ForeName:       pubmed.Deref(au.ForeName),
			Initials:       pubmed.Deref(au.Initials),
			CollectiveName: pubmed.Deref(au.CollectiveName),
			Affiliations:   au.Affiliations,
		}
		a.Authors = append(a.Authors, author)
	}

	for _, pt := range body.PublicationTypes {
		if pt.Value != nil {
			a.PublicationTypes = append(a.PublicationTypes, *pt.Value)
		}
	}
}
