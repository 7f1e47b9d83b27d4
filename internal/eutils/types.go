// Package eutils wraps the PubMed ESearch, EFetch and ELink endpoints. EFetch
// answers are parsed by package pubmed and can be flattened into Articles.
package eutils

import "strings"

// SearchResult represents the result of an ESearch query.
type SearchResult struct {
	Count            int      `json:"count"`
	IDs              []string `json:"ids"`
	QueryTranslation string   `json:"query_translation"`
	WebEnv           string   `json:"web_env,omitempty"`
	QueryKey         string   `json:"query_key,omitempty"`
}

// Article is the flattened, display-oriented view of one parsed record.
// Text fields are empty when the record does not carry them.
type Article struct {
	PMID              string            `json:"pmid"`
	Title             string            `json:"title"`
	Abstract          string            `json:"abstract"`
	AbstractSections  []AbstractSection `json:"abstract_sections,omitempty"`
	Authors           []Author          `json:"authors"`
	Journal           string            `json:"journal"`
	JournalAbbrev     string            `json:"journal_abbrev"`
	ISSN              string            `json:"issn,omitempty"`
	Volume            string            `json:"volume,omitempty"`
	Issue             string            `json:"issue,omitempty"`
	Pages             string            `json:"pages,omitempty"`
	Year              string            `json:"year"`
	Month             string            `json:"month,omitempty"`
	DOI               string            `json:"doi,omitempty"`
	PMCID             string            `json:"pmcid,omitempty"`
	MeSHTerms         []MeSHTerm        `json:"mesh_terms,omitempty"`
	PublicationTypes  []string          `json:"publication_types"`
	Language          string            `json:"language"`
	PublicationStatus string            `json:"publication_status,omitempty"`
}

// AbstractSection is one AbstractText with its inline markup stripped.
type AbstractSection struct {
	Label string `json:"label,omitempty"`
	Text  string `json:"text"`
}

// Author is a listed author; entries marked ValidYN="N" are never flattened.
type Author struct {
	LastName       string   `json:"last_name"`
	ForeName       string   `json:"fore_name"`
	Initials       string   `json:"initials"`
	CollectiveName string   `json:"collective_name,omitempty"`
	Affiliations   []string `json:"affiliations,omitempty"`
}

// FullName is the collective name for group authors, otherwise the fore
// name followed by the last name.
func (a Author) FullName() string {
	if a.CollectiveName != "" {
		return a.CollectiveName
	}
	return strings.TrimSpace(a.ForeName + " " + a.LastName)
}

// MeSHTerm represents a MeSH heading with optional qualifiers.
type MeSHTerm struct {
	Descriptor   string   `json:"descriptor"`
	DescriptorUI string   `json:"descriptor_ui"`
	MajorTopic   bool     `json:"major_topic"`
	Qualifiers   []string `json:"qualifiers,omitempty"`
}

// LinkResult represents the result of an ELink query.
type LinkResult struct {
	SourceID string     `json:"source_id"`
	Links    []LinkItem `json:"links"`
}

// LinkItem represents a single linked article, optionally with a relevance score.
type LinkItem struct {
	ID    string `json:"id"`
	Score int    `json:"score,omitempty"`
}

// SearchOptions narrows an ESearch query. MinDate and MaxDate are publication
// dates in any form ESearch accepts (YYYY, YYYY/MM, YYYY/MM/DD).
type SearchOptions struct {
	Limit   int
	Sort    string
	MinDate string
	MaxDate string
}
