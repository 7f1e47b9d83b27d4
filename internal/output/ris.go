package output

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/henrybloomingdale/pubmed-records/internal/pubmed"
)

// writeRecordsRIS exports parsed records to RIS for citation managers.
func writeRecordsRIS(path string, set *pubmed.ArticleSet) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating RIS file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing RIS file: %w", cerr)
		}
	}()

	rw := &risWriter{w: bufio.NewWriter(f)}
	for i, rec := range set.Articles {
		if i > 0 {
			rw.line("")
		}
		rw.record(rec)
	}
	if rw.err != nil {
		return fmt.Errorf("writing RIS output: %w", rw.err)
	}
	if err := rw.w.Flush(); err != nil {
		return fmt.Errorf("flushing RIS output: %w", err)
	}
	return nil
}

// risWriter keeps the first write error so a record can be emitted without
// checking every tag.
type risWriter struct {
	w   *bufio.Writer
	err error
}

func (rw *risWriter) line(s string) {
	if rw.err != nil {
		return
	}
	_, rw.err = rw.w.WriteString(s + "\n")
}

// tag writes "TG  - value", skipping empty values.
func (rw *risWriter) tag(tag, value string) {
	if value = sanitizeRISValue(value); value != "" {
		rw.line(tag + "  - " + value)
	}
}

func (rw *risWriter) record(rec pubmed.Article) {
	mc := rec.MedlineCitation
	if mc == nil {
		mc = &pubmed.MedlineCitation{}
	}
	body := mc.Article
	if body == nil {
		body = &pubmed.ArticleBody{}
	}

	rw.tag("TY", "JOUR")
	rw.tag("TI", pubmed.Deref(body.Title))
	for _, au := range body.Authors {
		if pubmed.Deref(au.Valid) != "N" {
			rw.tag("AU", risAuthor(au))
		}
	}
	rw.journal(body.Journal, mc.JournalInfo)

	sp, ep := splitPages(pubmed.Deref(body.Pagination))
	rw.tag("SP", sp)
	rw.tag("EP", ep)

	rw.tag("DO", recordDOI(rec.PubmedData, body.ELocationID))
	rw.tag("LA", pubmed.Deref(body.Language))
	if body.Abstract != nil {
		rw.tag("AB", strings.Join(abstractSections(body.Abstract), " "))
	}
	for _, mh := range mc.MeshHeadings {
		for _, kw := range meshKeywords(mh) {
			rw.tag("KW", kw)
		}
	}
	for _, pt := range body.PublicationTypes {
		rw.tag("M3", pubmed.Deref(pt.Value))
	}
	if pmc, ok := rec.PubmedData.ArticleID("pmc"); ok {
		rw.tag("C2", pmc)
	}
	if pmid := rec.PMIDValue(); pmid != "" {
		rw.tag("ID", "PMID:"+pmid)
		rw.tag("UR", "https://pubmed.ncbi.nlm.nih.gov/"+pmid+"/")
	}
	rw.line("ER  -")
}

func (rw *risWriter) journal(j *pubmed.Journal, info *pubmed.JournalInfo) {
	if j == nil {
		j = &pubmed.Journal{}
	}
	if info == nil {
		info = &pubmed.JournalInfo{}
	}
	var issue pubmed.JournalIssue
	if j.JournalIssue != nil {
		issue = *j.JournalIssue
	}

	rw.tag("PY", issue.PubDate.YearValue())
	rw.tag("DA", risDate(issue.PubDate))
	rw.tag("JO", pubmed.Deref(j.Title))
	abbrev := pubmed.Deref(j.ISOAbbreviation)
	if abbrev == "" {
		abbrev = pubmed.Deref(info.MedlineTA)
	}
	rw.tag("J2", abbrev)
	issn := ""
	if j.ISSN != nil {
		issn = pubmed.Deref(j.ISSN.Value)
	}
	if issn == "" {
		issn = pubmed.Deref(info.ISSNLinking)
	}
	rw.tag("SN", issn)
	rw.tag("VL", pubmed.Deref(issue.Volume))
	rw.tag("IS", pubmed.Deref(issue.Issue))
}

// recordDOI prefers the PubmedData identifier and falls back to a DOI
// ELocationID that is not flagged invalid.
func recordDOI(pd *pubmed.PubmedData, loc *pubmed.ELocationID) string {
	if doi, ok := pd.ArticleID("doi"); ok {
		return doi
	}
	if loc != nil && pubmed.Deref(loc.Type) == "doi" && pubmed.Deref(loc.Valid) != "N" {
		return pubmed.Deref(loc.Value)
	}
	return ""
}

func abstractSections(abs *pubmed.Abstract) []string {
	var out []string
	for _, at := range abs.Texts {
		text := at.Plain()
		if text == "" {
			continue
		}
		if label := pubmed.Deref(at.Label); label != "" {
			text = label + ": " + text
		}
		out = append(out, text)
	}
	return out
}

// meshKeywords renders a heading as its descriptor followed by one
// "Descriptor/qualifier" keyword per qualifier.
func meshKeywords(mh pubmed.MeshHeading) []string {
	if mh.Descriptor == nil || mh.Descriptor.Value == nil {
		return nil
	}
	desc := *mh.Descriptor.Value
	out := []string{desc}
	for _, q := range mh.Qualifiers {
		if q.Value != nil {
			out = append(out, desc+"/"+*q.Value)
		}
	}
	return out
}

// risDate formats a PubDate as YYYY/MM/DD/. Month names are converted to
// numbers; free-text MedlineDate values yield the year only.
func risDate(d *pubmed.PubDate) string {
	year := d.YearValue()
	if year == "" {
		return ""
	}
	var month, day string
	if d.Year != nil {
		month = risMonth(pubmed.Deref(d.Month))
		if month != "" {
			day = pubmed.Deref(d.Day)
			if n, err := strconv.Atoi(day); err == nil {
				day = fmt.Sprintf("%02d", n)
			}
		}
	}
	return year + "/" + month + "/" + day + "/"
}

func risMonth(m string) string {
	if m == "" {
		return ""
	}
	if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= 12 {
		return fmt.Sprintf("%02d", n)
	}
	if t, err := time.Parse("Jan", m); err == nil {
		return fmt.Sprintf("%02d", int(t.Month()))
	}
	return ""
}

func sanitizeRISValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func risAuthor(a pubmed.Author) string {
	if a.CollectiveName != nil {
		return *a.CollectiveName
	}
	last := strings.TrimSpace(pubmed.Deref(a.LastName))
	fore := strings.TrimSpace(pubmed.Deref(a.ForeName))
	switch {
	case last == "":
		return fore
	case fore == "":
		return last
	}
	return last + ", " + fore
}

// splitPages splits a MedlinePgn range. MEDLINE drops the leading digits an
// end page shares with its start page ("1203-11"), so those are restored.
func splitPages(pages string) (string, string) {
	pages = strings.TrimSpace(pages)
	for _, sep := range []string{"-", "–", "—"} {
		start, end, ok := strings.Cut(pages, sep)
		if !ok {
			continue
		}
		start, end = strings.TrimSpace(start), strings.TrimSpace(end)
		if isDigits(start) && isDigits(end) && len(end) < len(start) {
			end = start[:len(start)-len(end)] + end
		}
		return start, end
	}
	return pages, ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
