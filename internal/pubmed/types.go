// Package pubmed converts PubMed EFetch XML (a PubmedArticleSet document) into
// typed records.
//
// Optional values are pointers and are nil when the source element or
// attribute is missing; repeated elements become slices that are never nil.
// Records are built once per Read call and are not modified afterwards.
package pubmed

import "regexp"

// ArticleSet is the root of a parsed EFetch response.
type ArticleSet struct {
	Articles []Article `json:"articles"`
}

// Article is one PubmedArticle.
type Article struct {
	MedlineCitation *MedlineCitation `json:"medline_citation,omitempty"`
	PubmedData      *PubmedData      `json:"pubmed_data,omitempty"`
}

// MedlineCitation holds the bibliographic citation of an article.
type MedlineCitation struct {
	Status       *string       `json:"status,omitempty"`
	Owner        *string       `json:"owner,omitempty"`
	PMID         *PMID         `json:"pmid,omitempty"`
	DateRevised  *PubDate      `json:"date_revised,omitempty"`
	Article      *ArticleBody  `json:"article,omitempty"`
	JournalInfo  *JournalInfo  `json:"medline_journal_info,omitempty"`
	MeshHeadings []MeshHeading `json:"mesh_headings"`
}

// PMID is the PubMed identifier together with its version attribute.
type PMID struct {
	Value   *string `json:"value,omitempty"`
	Version *string `json:"version,omitempty"`
}

// ArticleBody is the Article element of a MedlineCitation.
type ArticleBody struct {
	PublicationModel *string           `json:"pub_model,omitempty"`
	Title            *string           `json:"title,omitempty"`
	Journal          *Journal          `json:"journal,omitempty"`
	Pagination       *string           `json:"pagination,omitempty"`
	ELocationID      *ELocationID      `json:"elocation_id,omitempty"`
	Language         *string           `json:"language,omitempty"`
	Abstract         *Abstract         `json:"abstract,omitempty"`
	Authors          []Author          `json:"authors"`
	PublicationTypes []PublicationType `json:"publication_types"`
}

// Journal describes the journal an article appeared in.
type Journal struct {
	ISSN            *ISSN         `json:"issn,omitempty"`
	JournalIssue    *JournalIssue `json:"journal_issue,omitempty"`
	Title           *string       `json:"title,omitempty"`
	ISOAbbreviation *string       `json:"iso_abbreviation,omitempty"`
}

// ISSN is a journal ISSN with its IssnType (Print, Electronic).
type ISSN struct {
	Type  *string `json:"type,omitempty"`
	Value *string `json:"value,omitempty"`
}

// JournalIssue identifies the issue an article appeared in.
type JournalIssue struct {
	CitedMedium *string  `json:"cited_medium,omitempty"`
	Volume      *string  `json:"volume,omitempty"`
	Issue       *string  `json:"issue,omitempty"`
	PubDate     *PubDate `json:"pub_date,omitempty"`
}

// PubDate keeps date components exactly as written. Month may be numeric or a
// name, and MedlineDate holds free text such as "1998 Dec-1999 Jan".
type PubDate struct {
	Year        *string `json:"year,omitempty"`
	Month       *string `json:"month,omitempty"`
	Day         *string `json:"day,omitempty"`
	MedlineDate *string `json:"medline_date,omitempty"`
}

// ELocationID is an electronic location such as a DOI or publisher item id.
type ELocationID struct {
	Type  *string `json:"type,omitempty"`
	Valid *string `json:"valid,omitempty"`
	Value *string `json:"value,omitempty"`
}

// Abstract is the ordered list of abstract sections.
type Abstract struct {
	Texts []AbstractText `json:"texts"`
}

// AbstractText is one abstract section. Value keeps inline markup such as
// <i>, <sup> or <mml:math> as literal tags.
type AbstractText struct {
	Label    *string `json:"label,omitempty"`
	Category *string `json:"category,omitempty"`
	Value    *string `json:"value,omitempty"`
}

// Author is an entry of an AuthorList. Either the name parts or
// CollectiveName are normally present.
type Author struct {
	Valid          *string  `json:"valid,omitempty"`
	LastName       *string  `json:"last_name,omitempty"`
	ForeName       *string  `json:"fore_name,omitempty"`
	Initials       *string  `json:"initials,omitempty"`
	CollectiveName *string  `json:"collective_name,omitempty"`
	Affiliations   []string `json:"affiliations"`
}

// PublicationType is a PublicationType entry with its MeSH UI.
type PublicationType struct {
	UI    *string `json:"ui,omitempty"`
	Value *string `json:"value,omitempty"`
}

// MeshHeading is a MeSH descriptor with its qualifiers.
type MeshHeading struct {
	Descriptor *MeshName  `json:"descriptor,omitempty"`
	Qualifiers []MeshName `json:"qualifiers"`
}

// MeshName is a DescriptorName or QualifierName.
type MeshName struct {
	UI         *string `json:"ui,omitempty"`
	MajorTopic *string `json:"major_topic,omitempty"`
	Value      *string `json:"value,omitempty"`
}

// JournalInfo is the MedlineJournalInfo element.
type JournalInfo struct {
	Country     *string `json:"country,omitempty"`
	MedlineTA   *string `json:"medline_ta,omitempty"`
	NlmUniqueID *string `json:"nlm_unique_id,omitempty"`
	ISSNLinking *string `json:"issn_linking,omitempty"`
}

// PubmedData is the post-publication metadata of an article.
type PubmedData struct {
	PublicationStatus *string        `json:"publication_status,omitempty"`
	ArticleIDList     *ArticleIDList `json:"article_id_list,omitempty"`
	ReferenceList     *ReferenceList `json:"reference_list,omitempty"`
	History           []HistoryDate  `json:"history"`
}

// ArticleIDList is an ordered list of article identifiers.
type ArticleIDList struct {
	ArticleIDs []ArticleID `json:"article_ids"`
}

// ArticleID is an identifier such as pubmed, doi, pmc or pii.
type ArticleID struct {
	Type  *string `json:"type,omitempty"`
	Value *string `json:"value,omitempty"`
}

// ReferenceList is an ordered list of cited references.
type ReferenceList struct {
	References []Reference `json:"references"`
}

// Reference is a cited reference.
type Reference struct {
	Citation      *string       `json:"citation,omitempty"`
	ArticleIDList ArticleIDList `json:"article_id_list"`
}

// HistoryDate is a PubMedPubDate from the History element.
type HistoryDate struct {
	Status *string `json:"pub_status,omitempty"`
	Year   *string `json:"year,omitempty"`
	Month  *string `json:"month,omitempty"`
	Day    *string `json:"day,omitempty"`
}

// PMIDValue returns the article's PMID, or "" when it has none.
func (a Article) PMIDValue() string {
	if a.MedlineCitation == nil || a.MedlineCitation.PMID == nil {
		return ""
	}
	return Deref(a.MedlineCitation.PMID.Value)
}

// ArticleID returns the first identifier of the given IdType, such as "doi".
func (d *PubmedData) ArticleID(idType string) (string, bool) {
	if d == nil || d.ArticleIDList == nil {
		return "", false
	}
	for _, id := range d.ArticleIDList.ArticleIDs {
		if Deref(id.Type) == idType && id.Value != nil {
			return *id.Value, true
		}
	}
	return "", false
}

var yearRe = regexp.MustCompile(`\d{4}`)

// YearValue returns Year, or the first four-digit run of MedlineDate for
// free-text dates such as "2023 Nov-Dec".
func (d *PubDate) YearValue() string {
	if d == nil {
		return ""
	}
	if d.Year != nil {
		return *d.Year
	}
	return yearRe.FindString(Deref(d.MedlineDate))
}

// Deref returns *s, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
