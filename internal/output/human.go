package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"

	"github.com/henrybloomingdale/pubmed-records/internal/eutils"
	"github.com/henrybloomingdale/pubmed-records/internal/mesh"
	"github.com/henrybloomingdale/pubmed-records/internal/pubmed"
)

var (
	cyan       = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	bold       = lipgloss.NewStyle().Bold(true)
	dim        = lipgloss.NewStyle().Faint(true)
	green      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellow     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	magenta    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
	noteStyle = lipgloss.NewStyle().Width(80).PaddingLeft(4)
)

// abstractBudget is how many runes of abstract text are shown without --full.
const abstractBudget = 500

// truncate cuts a string to maxLen runes, appending "…" if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Headers(headers...).
		Rows(rows...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return labelStyle
			}
			return lipgloss.NewStyle()
		})
}

// field prints an indented "Label: value" line, skipping empty values.
func field(w io.Writer, label, value string) {
	if value != "" {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label+":"), value)
	}
}

// card prints the boxed title of an article with PMID and any non-empty
// meta values on the line below it.
func card(w io.Writer, title, pmid string, meta ...string) {
	sub := cyan.Render("PMID: " + pmid)
	for _, m := range meta {
		if m != "" {
			sub += dim.Render(" · ") + m
		}
	}
	fmt.Fprintln(w, boxStyle.Render(bold.Render(title)+"\n"+sub))
	fmt.Fprintln(w)
}

func formatSearchHuman(w io.Writer, result *eutils.SearchResult, articles []eutils.Article) error {
	if result.Count == 0 {
		fmt.Fprintln(w, "🔬 No results found.")
		return nil
	}

	header := fmt.Sprintf("🔬 Found %d results", result.Count)
	if len(result.IDs) < result.Count {
		header += fmt.Sprintf(" (showing %d)", len(result.IDs))
	}
	fmt.Fprintln(w, bold.Render(header))
	if result.QueryTranslation != "" {
		fmt.Fprintf(w, "   Query: %s\n", dim.Render(result.QueryTranslation))
	}
	fmt.Fprintln(w)

	var tbl *table.Table
	if len(articles) == 0 {
		tbl = newTable([]string{"#", "PMID"}, lo.Map(result.IDs, func(id string, i int) []string {
			return []string{strconv.Itoa(i + 1), cyan.Render(id)}
		}))
	} else {
		byPMID := indexArticles(articles)
		tbl = newTable([]string{"PMID", "Title", "Year", "Type"}, lo.Map(result.IDs, func(id string, _ int) []string {
			a, ok := byPMID[id]
			if !ok {
				return []string{cyan.Render(id), "", "", ""}
			}
			return []string{cyan.Render(id), bold.Render(truncate(a.Title, 50)), a.Year, lo.FirstOr(a.PublicationTypes, "")}
		}))
	}
	fmt.Fprintln(w, tbl.Render())

	fmt.Fprintln(w)
	fmt.Fprintln(w, dim.Render("💾 Use --csv output.csv to export"))
	return nil
}

func formatArticlesHuman(w io.Writer, articles []eutils.Article, full bool) error {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	for i, a := range articles {
		if i > 0 {
			fmt.Fprintln(w)
		}
		card(w, a.Title, a.PMID, a.Year)
		writeSummaryHuman(w, a)
		if a.DOI != "" {
			field(w, "DOI", yellow.Render(a.DOI))
		}
		field(w, "Type", strings.Join(a.PublicationTypes, ", "))
		field(w, "MeSH", strings.Join(lo.Map(a.MeSHTerms, func(m eutils.MeSHTerm, _ int) string {
			if m.MajorTopic {
				return green.Render("*" + m.Descriptor)
			}
			return m.Descriptor
		}), ", "))
		writeAbstractHuman(w, a.AbstractSections, full)
	}
	return nil
}

func writeSummaryHuman(w io.Writer, a eutils.Article) {
	field(w, "Authors", authorNames(a.Authors))
	field(w, "Journal", citation(a))
}

// formatRecordsHuman adds what only the record graph has: citation and
// publication status, the article identifier table, the history dates and
// the reference count.
func formatRecordsHuman(w io.Writer, set *pubmed.ArticleSet, full bool) error {
	if len(set.Articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	articles := eutils.ArticlesFromSet(set)
	for i, rec := range set.Articles {
		if i > 0 {
			fmt.Fprintln(w)
		}
		a := articles[i]
		var status string
		if mc := rec.MedlineCitation; mc != nil && mc.Status != nil {
			status = magenta.Render(*mc.Status)
		}
		pd := rec.PubmedData
		if pd == nil {
			pd = &pubmed.PubmedData{}
		}

		card(w, a.Title, a.PMID, status, pubmed.Deref(pd.PublicationStatus))
		writeSummaryHuman(w, a)

		if pd.ArticleIDList != nil && len(pd.ArticleIDList.ArticleIDs) > 0 {
			fmt.Fprintln(w, newTable([]string{"ID type", "Value"}, lo.Map(pd.ArticleIDList.ArticleIDs, func(id pubmed.ArticleID, _ int) []string {
				return []string{pubmed.Deref(id.Type), yellow.Render(pubmed.Deref(id.Value))}
			})).Render())
		}
		field(w, "History", strings.Join(lo.Map(pd.History, func(h pubmed.HistoryDate, _ int) string {
			return pubmed.Deref(h.Status) + " " + historyDate(h)
		}), dim.Render(" → ")))

		writeAbstractHuman(w, a.AbstractSections, full)

		if pd.ReferenceList != nil {
			fmt.Fprintln(w)
			field(w, "References", strconv.Itoa(len(pd.ReferenceList.References)))
		}
	}
	return nil
}

// writeAbstractHuman prints labelled sections, cutting the text after
// abstractBudget runes unless full is set.
func writeAbstractHuman(w io.Writer, sections []eutils.AbstractSection, full bool) {
	if len(sections) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", labelStyle.Render("Abstract:"))

	hint := "  " + dim.Render("[use --full for complete abstract]")
	budget := abstractBudget
	for _, sec := range sections {
		if !full && budget <= 0 {
			fmt.Fprintln(w, hint)
			return
		}
		text := sec.Text
		if !full {
			text = truncate(text, budget)
		}
		budget -= len([]rune(text))
		if sec.Label != "" {
			text = bold.Render(sec.Label+":") + " " + text
		}
		fmt.Fprintf(w, "  %s\n", text)
	}
	if !full && budget <= 0 {
		fmt.Fprintln(w, hint)
	}
}

func formatLinksHuman(w io.Writer, result *eutils.LinkResult, linkType string, byPMID map[string]eutils.Article) error {
	emoji := map[string]string{"cited-by": "📚", "references": "📖", "related": "🔍"}[linkType]
	if emoji == "" {
		emoji = "🔗"
	}

	if len(result.Links) == 0 {
		fmt.Fprintf(w, "%s No %s results for PMID %s.\n", emoji, linkType, cyan.Render(result.SourceID))
		return nil
	}

	fmt.Fprintf(w, "%s %s for PMID %s (%d results)\n\n",
		emoji, bold.Render(linkTitle(linkType)), cyan.Render(result.SourceID), len(result.Links))

	hasScores := lo.SomeBy(result.Links, func(l eutils.LinkItem) bool { return l.Score > 0 })
	hasArticles := len(byPMID) > 0

	headers := []string{"#", "PMID"}
	if hasArticles {
		headers = append(headers, "Title", "Year")
	}
	if hasScores {
		headers = append(headers, "Score")
	}

	rows := lo.Map(result.Links, func(link eutils.LinkItem, i int) []string {
		row := []string{strconv.Itoa(i + 1), cyan.Render(link.ID)}
		if hasArticles {
			a := byPMID[link.ID]
			row = append(row, truncate(a.Title, 60), a.Year)
		}
		if hasScores {
			score := ""
			if link.Score > 0 {
				score = dim.Render(strconv.Itoa(link.Score))
			}
			row = append(row, score)
		}
		return row
	})
	fmt.Fprintln(w, newTable(headers, rows).Render())
	return nil
}

func formatMeSHHuman(w io.Writer, record *mesh.MeSHRecord) error {
	fmt.Fprintf(w, "🏷️  %s  %s\n\n", bold.Render(record.Name), dim.Render(record.UI))

	if len(record.TreeNumbers) > 0 {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("Tree Numbers:"))
		for _, tn := range record.TreeNumbers {
			fmt.Fprintf(w, "    %s %s\n", magenta.Render("├"), tn)
		}
		fmt.Fprintln(w)
	}

	if record.ScopeNote != "" {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("Scope Note:"))
		fmt.Fprintln(w, noteStyle.Render(record.ScopeNote))
		fmt.Fprintln(w)
	}

	if len(record.EntryTerms) > 0 {
		field(w, "Synonyms", strings.Join(lo.Map(record.EntryTerms, func(et string, _ int) string {
			return yellow.Render(et)
		}), ", "))
		fmt.Fprintln(w)
	}
	if len(record.PharmacologicalActions) > 0 {
		field(w, "Actions", strings.Join(record.PharmacologicalActions, ", "))
		fmt.Fprintln(w)
	}
	field(w, "Annotation", record.Annotation)
	return nil
}
