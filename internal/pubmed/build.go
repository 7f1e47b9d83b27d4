package pubmed

import (
	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// Element names recognized by the builders. Anything else is skipped.
const (
	tagArticleSet         = "PubmedArticleSet"
	tagPubmedArticle      = "PubmedArticle"
	tagMedlineCitation    = "MedlineCitation"
	tagPubmedData         = "PubmedData"
	tagPMID               = "PMID"
	tagDateRevised        = "DateRevised"
	tagArticle            = "Article"
	tagMedlineJournalInfo = "MedlineJournalInfo"
	tagMeshHeadingList    = "MeshHeadingList"
	tagMeshHeading        = "MeshHeading"
	tagDescriptorName     = "DescriptorName"
	tagQualifierName      = "QualifierName"
	tagArticleTitle       = "ArticleTitle"
	tagJournal            = "Journal"
	tagPagination         = "Pagination"
	tagMedlinePgn         = "MedlinePgn"
	tagELocationID        = "ELocationID"
	tagLanguage           = "Language"
	tagAbstract           = "Abstract"
	tagAbstractText       = "AbstractText"
	tagAuthorList         = "AuthorList"
	tagAuthor             = "Author"
	tagLastName           = "LastName"
	tagForeName           = "ForeName"
	tagInitials           = "Initials"
	tagCollectiveName     = "CollectiveName"
	tagAffiliationInfo    = "AffiliationInfo"
	tagAffiliation        = "Affiliation"
	tagPublicationTypes   = "PublicationTypeList"
	tagPublicationType    = "PublicationType"
	tagISSN               = "ISSN"
	tagJournalIssue       = "JournalIssue"
	tagTitle              = "Title"
	tagISOAbbreviation    = "ISOAbbreviation"
	tagVolume             = "Volume"
	tagIssue              = "Issue"
	tagPubDate            = "PubDate"
	tagYear               = "Year"
	tagMonth              = "Month"
	tagDay                = "Day"
	tagMedlineDate        = "MedlineDate"
	tagCountry            = "Country"
	tagMedlineTA          = "MedlineTA"
	tagNlmUniqueID        = "NlmUniqueID"
	tagISSNLinking        = "ISSNLinking"
	tagPublicationStatus  = "PublicationStatus"
	tagArticleIDList      = "ArticleIdList"
	tagArticleID          = "ArticleId"
	tagReferenceList      = "ReferenceList"
	tagReference          = "Reference"
	tagCitation           = "Citation"
	tagHistory            = "History"
	tagPubMedPubDate      = "PubMedPubDate"
)

// builder turns elements into records. Each builder method reads one element,
// gathers the values of the children it recognizes into locals, and returns
// the finished record. Children are matched on their name as written, so a
// prefixed element such as <x:PMID> is skipped like any other unknown tag.
type builder struct {
	log     zerolog.Logger
	skipped int
}

func (b *builder) skip(parent, child *etree.Element) {
	b.skipped++
	b.log.Trace().
		Str("parent", parent.FullTag()).
		Str("element", child.FullTag()).
		Msg("skipping unrecognized element")
}

func (b *builder) articleSet(n *etree.Element) *ArticleSet {
	articles := []Article{}
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagPubmedArticle:
			articles = append(articles, b.article(c))
		default:
			b.skip(n, c)
		}
	}
	return &ArticleSet{Articles: articles}
}

func (b *builder) article(n *etree.Element) Article {
	var (
		citation *MedlineCitation
		data     *PubmedData
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagMedlineCitation:
			citation = b.medlineCitation(c)
		case tagPubmedData:
			data = b.pubmedData(c)
		default:
			b.skip(n, c)
		}
	}
	return Article{MedlineCitation: citation, PubmedData: data}
}

func (b *builder) medlineCitation(n *etree.Element) *MedlineCitation {
	var (
		pmid        *PMID
		revised     *PubDate
		body        *ArticleBody
		journalInfo *JournalInfo
		headings    = []MeshHeading{}
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagPMID:
			pmid = &PMID{Value: text(c), Version: attr(c, "Version")}
		case tagDateRevised:
			revised = b.pubDate(c)
		case tagArticle:
			body = b.articleBody(c)
		case tagMedlineJournalInfo:
			journalInfo = b.journalInfo(c)
		case tagMeshHeadingList:
			headings = append(headings, b.meshHeadings(c)...)
		default:
			b.skip(n, c)
		}
	}
	return &MedlineCitation{
		Status:       attr(n, "Status"),
		Owner:        attr(n, "Owner"),
		PMID:         pmid,
		DateRevised:  revised,
		Article:      body,
		JournalInfo:  journalInfo,
		MeshHeadings: headings,
	}
}

func (b *builder) articleBody(n *etree.Element) *ArticleBody {
	var (
		title, pagination, language *string
		journal                     *Journal
		elocation                   *ELocationID
		abstract                    *Abstract
		authors                     = []Author{}
		pubTypes                    = []PublicationType{}
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagArticleTitle:
			title = text(c)
		case tagJournal:
			journal = b.journal(c)
		case tagPagination:
			pagination = b.childText(c, tagMedlinePgn)
		case tagELocationID:
			elocation = &ELocationID{
				Type:  attr(c, "EIdType"),
				Valid: attr(c, "ValidYN"),
				Value: text(c),
			}
		case tagLanguage:
			language = text(c)
		case tagAbstract:
			abstract = b.abstract(c)
		case tagAuthorList:
			authors = append(authors, b.authors(c)...)
		case tagPublicationTypes:
			pubTypes = append(pubTypes, b.publicationTypes(c)...)
		default:
			b.skip(n, c)
		}
	}
	return &ArticleBody{
		PublicationModel: attr(n, "PubModel"),
		Title:            title,
		Journal:          journal,
		Pagination:       pagination,
		ELocationID:      elocation,
		Language:         language,
		Abstract:         abstract,
		Authors:          authors,
		PublicationTypes: pubTypes,
	}
}

// childText returns the direct text of the last child of n named tag.
func (b *builder) childText(n *etree.Element, tag string) *string {
	var v *string
	for _, c := range n.ChildElements() {
		if c.FullTag() == tag {
			v = text(c)
			continue
		}
		b.skip(n, c)
	}
	return v
}

func (b *builder) journal(n *etree.Element) *Journal {
	var (
		issn       *ISSN
		issue      *JournalIssue
		title, iso *string
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagISSN:
			issn = &ISSN{Type: attr(c, "IssnType"), Value: text(c)}
		case tagJournalIssue:
			issue = b.journalIssue(c)
		case tagTitle:
			title = text(c)
		case tagISOAbbreviation:
			iso = text(c)
		default:
			b.skip(n, c)
		}
	}
	return &Journal{ISSN: issn, JournalIssue: issue, Title: title, ISOAbbreviation: iso}
}

func (b *builder) journalIssue(n *etree.Element) *JournalIssue {
	var (
		volume, issue *string
		date          *PubDate
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagVolume:
			volume = text(c)
		case tagIssue:
			issue = text(c)
		case tagPubDate:
			date = b.pubDate(c)
		default:
			b.skip(n, c)
		}
	}
	return &JournalIssue{
		CitedMedium: attr(n, "CitedMedium"),
		Volume:      volume,
		Issue:       issue,
		PubDate:     date,
	}
}

func (b *builder) pubDate(n *etree.Element) *PubDate {
	var year, month, day, medline *string
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagYear:
			year = text(c)
		case tagMonth:
			month = text(c)
		case tagDay:
			day = text(c)
		case tagMedlineDate:
			medline = text(c)
		default:
			b.skip(n, c)
		}
	}
	return &PubDate{Year: year, Month: month, Day: day, MedlineDate: medline}
}

func (b *builder) abstract(n *etree.Element) *Abstract {
	texts := []AbstractText{}
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagAbstractText:
			texts = append(texts, AbstractText{
				Label:    attr(c, "Label"),
				Category: attr(c, "NlmCategory"),
				Value:    mixedContent(c),
			})
		default:
			b.skip(n, c)
		}
	}
	return &Abstract{Texts: texts}
}

func (b *builder) authors(n *etree.Element) []Author {
	authors := []Author{}
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagAuthor:
			authors = append(authors, b.author(c))
		default:
			b.skip(n, c)
		}
	}
	return authors
}

func (b *builder) author(n *etree.Element) Author {
	var (
		last, fore, initials, collective *string
		affiliations                     = []string{}
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagLastName:
			last = text(c)
		case tagForeName:
			fore = text(c)
		case tagInitials:
			initials = text(c)
		case tagCollectiveName:
			collective = text(c)
		case tagAffiliationInfo:
			if aff := b.childText(c, tagAffiliation); aff != nil {
				affiliations = append(affiliations, *aff)
			}
		default:
			b.skip(n, c)
		}
	}
	return Author{
		Valid:          attr(n, "ValidYN"),
		LastName:       last,
		ForeName:       fore,
		Initials:       initials,
		CollectiveName: collective,
		Affiliations:   affiliations,
	}
}

func (b *builder) publicationTypes(n *etree.Element) []PublicationType {
	types := []PublicationType{}
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagPublicationType:
			types = append(types, PublicationType{UI: attr(c, "UI"), Value: text(c)})
		default:
			b.skip(n, c)
		}
	}
	return types
}

func (b *builder) meshHeadings(n *etree.Element) []MeshHeading {
	headings := []MeshHeading{}
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagMeshHeading:
			headings = append(headings, b.meshHeading(c))
		default:
			b.skip(n, c)
		}
	}
	return headings
}

func (b *builder) meshHeading(n *etree.Element) MeshHeading {
	var (
		descriptor *MeshName
		qualifiers = []MeshName{}
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagDescriptorName:
			name := meshName(c)
			descriptor = &name
		case tagQualifierName:
			qualifiers = append(qualifiers, meshName(c))
		default:
			b.skip(n, c)
		}
	}
	return MeshHeading{Descriptor: descriptor, Qualifiers: qualifiers}
}

func meshName(n *etree.Element) MeshName {
	return MeshName{
		UI:         attr(n, "UI"),
		MajorTopic: attr(n, "MajorTopicYN"),
		Value:      text(n),
	}
}

func (b *builder) journalInfo(n *etree.Element) *JournalInfo {
	var country, ta, uid, linking *string
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagCountry:
			country = text(c)
		case tagMedlineTA:
			ta = text(c)
		case tagNlmUniqueID:
			uid = text(c)
		case tagISSNLinking:
			linking = text(c)
		default:
			b.skip(n, c)
		}
	}
	return &JournalInfo{Country: country, MedlineTA: ta, NlmUniqueID: uid, ISSNLinking: linking}
}

func (b *builder) pubmedData(n *etree.Element) *PubmedData {
	var (
		status  *string
		ids     *ArticleIDList
		refs    *ReferenceList
		history = []HistoryDate{}
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagPublicationStatus:
			status = text(c)
		case tagArticleIDList:
			list := b.articleIDList(c)
			ids = &list
		case tagReferenceList:
			refs = b.referenceList(c)
		case tagHistory:
			history = append(history, b.history(c)...)
		default:
			b.skip(n, c)
		}
	}
	return &PubmedData{
		PublicationStatus: status,
		ArticleIDList:     ids,
		ReferenceList:     refs,
		History:           history,
	}
}

func (b *builder) articleIDList(n *etree.Element) ArticleIDList {
	ids := []ArticleID{}
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagArticleID:
			ids = append(ids, ArticleID{Type: attr(c, "IdType"), Value: text(c)})
		default:
			b.skip(n, c)
		}
	}
	return ArticleIDList{ArticleIDs: ids}
}

func (b *builder) referenceList(n *etree.Element) *ReferenceList {
	refs := []Reference{}
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagReference:
			refs = append(refs, b.reference(c))
		default:
			b.skip(n, c)
		}
	}
	return &ReferenceList{References: refs}
}

func (b *builder) reference(n *etree.Element) Reference {
	var (
		citation *string
		ids      = ArticleIDList{ArticleIDs: []ArticleID{}}
	)
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagCitation:
			citation = text(c)
		case tagArticleIDList:
			ids = b.articleIDList(c)
		default:
			b.skip(n, c)
		}
	}
	return Reference{Citation: citation, ArticleIDList: ids}
}

func (b *builder) history(n *etree.Element) []HistoryDate {
	dates := []HistoryDate{}
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagPubMedPubDate:
			dates = append(dates, b.historyDate(c))
		default:
			b.skip(n, c)
		}
	}
	return dates
}

func (b *builder) historyDate(n *etree.Element) HistoryDate {
	var year, month, day *string
	for _, c := range n.ChildElements() {
		switch c.FullTag() {
		case tagYear:
			year = text(c)
		case tagMonth:
			month = text(c)
		case tagDay:
			day = text(c)
		default:
			b.skip(n, c)
		}
	}
	return HistoryDate{Status: attr(n, "PubStatus"), Year: year, Month: month, Day: day}
}
