// Package output renders search results, article records, links and MeSH
// descriptors as plain text, JSON, styled terminal output, CSV or RIS.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/henrybloomingdale/pubmed-records/internal/eutils"
	"github.com/henrybloomingdale/pubmed-records/internal/mesh"
	"github.com/henrybloomingdale/pubmed-records/internal/pubmed"
)

// OutputConfig controls which output mode(s) are active.
type OutputConfig struct {
	JSON    bool   // Structured JSON
	Human   bool   // Rich terminal output with color
	Full    bool   // Show full abstract (human mode)
	Records bool   // Show the parsed record graph instead of flattened articles
	CSVFile string // Export results to this CSV path (works alongside any mode)
	RISFile string // Export results to this RIS path (works alongside any mode)
}

// FormatSearchResult writes search results.
// articles may be non-nil when --human or --csv triggers an auto-fetch.
func FormatSearchResult(w io.Writer, result *eutils.SearchResult, articles []eutils.Article, cfg OutputConfig) error {
	if cfg.CSVFile != "" {
		if err := writeSearchCSV(cfg.CSVFile, result, articles); err != nil {
			return fmt.Errorf("CSV export failed: %w", err)
		}
	}
	if cfg.JSON {
		return writeJSON(w, result)
	}
	if cfg.Human {
		return formatSearchHuman(w, result, articles)
	}
	return formatSearchPlain(w, result)
}

// FormatArticleSet writes a parsed record set. By default each article is
// flattened to its summary fields; with Records set, JSON output is the
// complete record graph and the text modes add citation status, article
// identifiers, history and reference counts. Exports are written either way.
func FormatArticleSet(w io.Writer, set *pubmed.ArticleSet, cfg OutputConfig) error {
	if set == nil {
		set = &pubmed.ArticleSet{Articles: []pubmed.Article{}}
	}
	articles := eutils.ArticlesFromSet(set)
	if cfg.CSVFile != "" {
		if err := writeArticlesCSV(cfg.CSVFile, articles); err != nil {
			return fmt.Errorf("CSV export failed: %w", err)
		}
	}
	if cfg.RISFile != "" {
		if err := writeRecordsRIS(cfg.RISFile, set); err != nil {
			return fmt.Errorf("RIS export failed: %w", err)
		}
	}

	switch {
	case cfg.Records && cfg.JSON:
		return writeJSON(w, set)
	case cfg.Records && cfg.Human:
		return formatRecordsHuman(w, set, cfg.Full)
	case cfg.Records:
		return formatRecordsPlain(w, set)
	case cfg.JSON:
		return writeJSON(w, articles)
	case cfg.Human:
		return formatArticlesHuman(w, articles, cfg.Full)
	}
	return formatArticlesPlain(w, articles)
}

// FormatLinks writes link results.
func FormatLinks(w io.Writer, result *eutils.LinkResult, linkType string, cfg OutputConfig) error {
	return FormatLinksWithArticles(w, result, nil, linkType, cfg)
}

// FormatLinksWithArticles writes link results, adding title and year for
// every linked PMID found in articles.
func FormatLinksWithArticles(w io.Writer, result *eutils.LinkResult, articles []eutils.Article, linkType string, cfg OutputConfig) error {
	byPMID := indexArticles(articles)
	if cfg.CSVFile != "" {
		if err := writeLinksCSV(cfg.CSVFile, result, byPMID); err != nil {
			return fmt.Errorf("CSV export failed: %w", err)
		}
	}
	if cfg.JSON {
		if len(articles) == 0 {
			return writeJSON(w, result)
		}
		return writeJSON(w, struct {
			*eutils.LinkResult
			Articles []eutils.Article `json:"articles"`
		}{result, articles})
	}
	if cfg.Human {
		return formatLinksHuman(w, result, linkType, byPMID)
	}
	return formatLinksPlain(w, result, linkType, byPMID)
}

// FormatMeSHRecord writes a MeSH record.
func FormatMeSHRecord(w io.Writer, record *mesh.MeSHRecord, cfg OutputConfig) error {
	if cfg.CSVFile != "" {
		if err := writeMeSHCSV(cfg.CSVFile, record); err != nil {
			return fmt.Errorf("CSV export failed: %w", err)
		}
	}
	if cfg.JSON {
		return writeJSON(w, record)
	}
	if cfg.Human {
		return formatMeSHHuman(w, record)
	}
	return formatMeSHPlain(w, record)
}

func indexArticles(articles []eutils.Article) map[string]eutils.Article {
	return lo.KeyBy(articles, func(a eutils.Article) string { return a.PMID })
}

func linkTitle(linkType string) string {
	switch linkType {
	case "cited-by":
		return "Cited By"
	case "references":
		return "References"
	case "related":
		return "Related Articles"
	}
	return linkType
}

// citation renders "Journal Vol(Issue):Pages (Year)", leaving out empty parts.
func citation(a eutils.Article) string {
	c := a.Journal
	if a.Volume != "" {
		c += " " + a.Volume
		if a.Issue != "" {
			c += "(" + a.Issue + ")"
		}
	}
	if a.Pages != "" {
		c += ":" + a.Pages
	}
	if a.Year != "" {
		c += " (" + a.Year + ")"
	}
	return c
}

func authorNames(authors []eutils.Author) string {
	return strings.Join(authorList(authors), ", ")
}

// --- Plain text formatters (default) ---

// line prints "Label: value", skipping empty values.
func line(w io.Writer, label, value string) {
	if value != "" {
		fmt.Fprintf(w, "%s: %s\n", label, value)
	}
}

// list prints a titled block of indented items after a blank line.
func list(w io.Writer, title, bullet string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  %s%s\n", bullet, it)
	}
}

func separator(w io.Writer, i int) {
	if i > 0 {
		fmt.Fprintf(w, "\n%s\n\n", strings.Repeat("─", 80))
	}
}

func formatSearchPlain(w io.Writer, result *eutils.SearchResult) error {
	if result.Count == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	found := fmt.Sprintf("Found %d results", result.Count)
	if n := len(result.IDs); n < result.Count {
		found += fmt.Sprintf(" (showing %d)", n)
	}
	fmt.Fprintln(w, found)
	line(w, "Query", result.QueryTranslation)
	fmt.Fprintln(w)
	for i, id := range result.IDs {
		fmt.Fprintf(w, "  %d. PMID: %s\n", i+1, id)
	}
	return nil
}

// meshLine renders "Descriptor / qualifier, qualifier" behind a "* " marker
// for major topics.
func meshLine(m eutils.MeSHTerm) string {
	term := m.Descriptor
	if len(m.Qualifiers) > 0 {
		term += " / " + strings.Join(m.Qualifiers, ", ")
	}
	if m.MajorTopic {
		return "* " + term
	}
	return "  " + term
}

func formatArticlesPlain(w io.Writer, articles []eutils.Article) error {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	for i, a := range articles {
		separator(w, i)
		line(w, "PMID", a.PMID)
		fmt.Fprintf(w, "Title: %s\n", a.Title)
		line(w, "Authors", authorNames(a.Authors))
		fmt.Fprintf(w, "Journal: %s\n", citation(a))
		line(w, "DOI", a.DOI)
		line(w, "PMCID", a.PMCID)
		line(w, "Type", strings.Join(a.PublicationTypes, ", "))
		if a.Abstract != "" {
			fmt.Fprintf(w, "\nAbstract:\n%s\n", a.Abstract)
		}
		list(w, "MeSH Terms", "", lo.Map(a.MeSHTerms, func(m eutils.MeSHTerm, _ int) string { return meshLine(m) }))
	}
	return nil
}

// formatRecordsPlain summarises the record graph, including the parts the
// flattened Article drops: citation status, article identifiers, history
// and reference counts.
func formatRecordsPlain(w io.Writer, set *pubmed.ArticleSet) error {
	if len(set.Articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	for i, rec := range set.Articles {
		separator(w, i)

		mc := rec.MedlineCitation
		if mc == nil {
			fmt.Fprintln(w, "(article without MedlineCitation)")
		} else {
			pmid := "?"
			if mc.PMID != nil {
				pmid = pubmed.Deref(mc.PMID.Value)
				if v := pubmed.Deref(mc.PMID.Version); v != "" {
					pmid += " (version " + v + ")"
				}
			}
			fmt.Fprintf(w, "PMID: %s\n", pmid)
			if s := pubmed.Deref(mc.Status); s != "" {
				fmt.Fprintf(w, "Status: %s / %s\n", s, pubmed.Deref(mc.Owner))
			}
			if body := mc.Article; body != nil {
				writeBodyPlain(w, body)
			}
			if len(mc.MeshHeadings) > 0 {
				fmt.Fprintf(w, "MeSH headings: %d\n", len(mc.MeshHeadings))
			}
		}

		if pd := rec.PubmedData; pd != nil {
			if s := pubmed.Deref(pd.PublicationStatus); s != "" {
				fmt.Fprintf(w, "Publication status: %s\n", s)
			}
			if pd.ArticleIDList != nil {
				for _, id := range pd.ArticleIDList.ArticleIDs {
					fmt.Fprintf(w, "ID [%s]: %s\n", pubmed.Deref(id.Type), pubmed.Deref(id.Value))
				}
			}
			for _, h := range pd.History {
				fmt.Fprintf(w, "History %s: %s\n", pubmed.Deref(h.Status), historyDate(h))
			}
			if pd.ReferenceList != nil {
				fmt.Fprintf(w, "References: %d\n", len(pd.ReferenceList.References))
			}
		}
	}
	return nil
}

func writeBodyPlain(w io.Writer, body *pubmed.ArticleBody) {
	fmt.Fprintf(w, "Title: %s\n", pubmed.Deref(body.Title))
	if j := body.Journal; j != nil {
		journal := pubmed.Deref(j.Title)
		if j.ISSN != nil {
			journal += fmt.Sprintf(" [ISSN %s %s]", pubmed.Deref(j.ISSN.Type), pubmed.Deref(j.ISSN.Value))
		}
		if issue := j.JournalIssue; issue != nil && issue.PubDate != nil {
			journal += " " + pubDate(issue.PubDate)
		}
		fmt.Fprintf(w, "Journal: %s\n", strings.TrimSpace(journal))
	}
	if len(body.Authors) > 0 {
		fmt.Fprintf(w, "Authors: %d\n", len(body.Authors))
	}
	if abs := body.Abstract; abs != nil {
		for _, at := range abs.Texts {
			label := pubmed.Deref(at.Label)
			if label == "" {
				label = "Abstract"
			}
			fmt.Fprintf(w, "%s: %s\n", label, pubmed.Deref(at.Value))
		}
	}
}

func pubDate(d *pubmed.PubDate) string {
	if d.MedlineDate != nil {
		return *d.MedlineDate
	}
	parts := []string{pubmed.Deref(d.Year), pubmed.Deref(d.Month), pubmed.Deref(d.Day)}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func historyDate(h pubmed.HistoryDate) string {
	parts := []string{pubmed.Deref(h.Year), pubmed.Deref(h.Month), pubmed.Deref(h.Day)}
	out := parts[0]
	for _, p := range parts[1:] {
		if p == "" {
			break
		}
		out += "-" + p
	}
	return out
}

func formatLinksPlain(w io.Writer, result *eutils.LinkResult, linkType string, byPMID map[string]eutils.Article) error {
	if len(result.Links) == 0 {
		fmt.Fprintf(w, "No %s results for PMID %s.\n", linkType, result.SourceID)
		return nil
	}

	fmt.Fprintf(w, "%s for PMID %s (%d results):\n\n", linkTitle(linkType), result.SourceID, len(result.Links))

	for i, link := range result.Links {
		entry := fmt.Sprintf("  %d. PMID: %s", i+1, link.ID)
		if link.Score > 0 {
			entry += fmt.Sprintf(" (score: %d)", link.Score)
		}
		if a, ok := byPMID[link.ID]; ok {
			entry += " " + a.Title
			if a.Year != "" {
				entry += " (" + a.Year + ")"
			}
		}
		fmt.Fprintln(w, entry)
	}

	return nil
}

func formatMeSHPlain(w io.Writer, record *mesh.MeSHRecord) error {
	line(w, "MeSH Term", record.Name)
	line(w, "UI", record.UI)
	list(w, "Tree Numbers", "", record.TreeNumbers)
	if record.ScopeNote != "" {
		list(w, "Scope Note", "", []string{record.ScopeNote})
	}
	list(w, "Entry Terms (synonyms)", "- ", record.EntryTerms)
	if len(record.PharmacologicalActions) > 0 {
		fmt.Fprintln(w)
		line(w, "Pharmacological Actions", strings.Join(record.PharmacologicalActions, "; "))
	}
	if record.Annotation != "" {
		fmt.Fprintln(w)
		line(w, "Annotation", record.Annotation)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
