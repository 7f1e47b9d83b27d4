package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/henrybloomingdale/pubmed-records/internal/eutils"
	"github.com/henrybloomingdale/pubmed-records/internal/mesh"
)

var articleCSVHeader = []string{
	"pmid", "title", "authors", "journal", "year", "volume", "issue", "pages",
	"doi", "pmcid", "publication_types", "mesh_terms", "language", "abstract",
}

// writeCSV creates path and writes header plus rows to it.
func writeCSV(path string, header []string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing CSV file: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing CSV rows: %w", err)
	}
	return nil
}

func articleRow(a eutils.Article) []string {
	descriptors := make([]string, len(a.MeSHTerms))
	for i, m := range a.MeSHTerms {
		descriptors[i] = m.Descriptor
	}
	return []string{
		a.PMID,
		a.Title,
		strings.Join(authorList(a.Authors), "; "),
		a.Journal,
		a.Year,
		a.Volume,
		a.Issue,
		a.Pages,
		a.DOI,
		a.PMCID,
		strings.Join(a.PublicationTypes, "; "),
		strings.Join(descriptors, "; "),
		a.Language,
		a.Abstract,
	}
}

func authorList(authors []eutils.Author) []string {
	names := make([]string, len(authors))
	for i, au := range authors {
		names[i] = au.FullName()
	}
	return names
}

// writeSearchCSV exports search hits in result order. Without fetched
// articles only rank and PMID are known.
func writeSearchCSV(path string, result *eutils.SearchResult, articles []eutils.Article) error {
	if len(articles) == 0 {
		rows := make([][]string, len(result.IDs))
		for i, id := range result.IDs {
			rows[i] = []string{strconv.Itoa(i + 1), id}
		}
		return writeCSV(path, []string{"rank", "pmid"}, rows)
	}

	byPMID := indexArticles(articles)
	header := append([]string{"rank"}, articleCSVHeader...)
	rows := make([][]string, 0, len(result.IDs))
	for i, id := range result.IDs {
		a, ok := byPMID[id]
		if !ok {
			a = eutils.Article{PMID: id}
		}
		rows = append(rows, append([]string{strconv.Itoa(i + 1)}, articleRow(a)...))
	}
	return writeCSV(path, header, rows)
}

// writeArticlesCSV exports one row per article.
func writeArticlesCSV(path string, articles []eutils.Article) error {
	rows := make([][]string, len(articles))
	for i, a := range articles {
		rows[i] = articleRow(a)
	}
	return writeCSV(path, articleCSVHeader, rows)
}

// writeLinksCSV exports linked PMIDs with score, plus title and year when
// the linked article was fetched.
func writeLinksCSV(path string, result *eutils.LinkResult, byPMID map[string]eutils.Article) error {
	rows := make([][]string, len(result.Links))
	for i, link := range result.Links {
		score := ""
		if link.Score > 0 {
			score = strconv.Itoa(link.Score)
		}
		a := byPMID[link.ID]
		rows[i] = []string{result.SourceID, link.ID, score, a.Title, a.Year}
	}
	return writeCSV(path, []string{"source_pmid", "pmid", "score", "title", "year"}, rows)
}

// writeMeSHCSV exports a descriptor as a single row; list fields are joined
// with "; ".
func writeMeSHCSV(path string, record *mesh.MeSHRecord) error {
	header := []string{"ui", "name", "tree_numbers", "entry_terms", "pharmacological_actions", "scope_note", "annotation"}
	row := []string{
		record.UI,
		record.Name,
		strings.Join(record.TreeNumbers, "; "),
		strings.Join(record.EntryTerms, "; "),
		strings.Join(record.PharmacologicalActions, "; "),
		record.ScopeNote,
		record.Annotation,
	}
	return writeCSV(path, header, [][]string{row})
}
