package pubmed

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", filename))
	require.NoError(t, err, "loading testdata/%s", filename)
	return data
}

func ptr(s string) *string { return &s }

func TestRead_Fixture(t *testing.T) {
	set, err := Read(loadTestdata(t, "efetch_pubmed.xml"))
	require.NoError(t, err)
	require.Len(t, set.Articles, 2)

	first := set.Articles[0]
	require.NotNil(t, first.MedlineCitation)
	mc := first.MedlineCitation
	assert.Equal(t, ptr("MEDLINE"), mc.Status)
	assert.Equal(t, ptr("NLM"), mc.Owner)
	assert.Equal(t, &PMID{Value: ptr("38000001"), Version: ptr("1")}, mc.PMID)
	assert.Equal(t, &PubDate{Year: ptr("2024"), Month: ptr("02"), Day: ptr("11")}, mc.DateRevised)
	assert.Equal(t, "38000001", first.PMIDValue())

	body := mc.Article
	require.NotNil(t, body)
	assert.Equal(t, ptr("Print-Electronic"), body.PublicationModel)
	assert.Equal(t, ptr("Sleep disruption in fragile X syndrome: a cohort study."), body.Title)
	assert.Equal(t, ptr("101-110"), body.Pagination)
	assert.Equal(t, ptr("eng"), body.Language)
	assert.Equal(t, &ELocationID{Type: ptr("doi"), Valid: ptr("Y"), Value: ptr("10.1017/S0033291723000001")}, body.ELocationID)

	journal := body.Journal
	require.NotNil(t, journal)
	assert.Equal(t, &ISSN{Type: ptr("Electronic"), Value: ptr("1469-8978")}, journal.ISSN)
	assert.Equal(t, ptr("Psychological medicine"), journal.Title)
	assert.Equal(t, ptr("Psychol Med"), journal.ISOAbbreviation)
	assert.Equal(t, &JournalIssue{
		CitedMedium: ptr("Internet"),
		Volume:      ptr("54"),
		Issue:       ptr("3"),
		PubDate:     &PubDate{Year: ptr("2024"), Month: ptr("Feb")},
	}, journal.JournalIssue)

	require.NotNil(t, body.Abstract)
	require.Len(t, body.Abstract.Texts, 2)
	assert.Equal(t, ptr("BACKGROUND"), body.Abstract.Texts[0].Label)
	assert.Equal(t, ptr("BACKGROUND"), body.Abstract.Texts[0].Category)
	assert.Equal(t, ptr("Sleep problems are common in <i>FMR1</i> full mutation carriers."), body.Abstract.Texts[0].Value)
	assert.Equal(t, ptr("RESULTS"), body.Abstract.Texts[1].Label)

	require.Len(t, body.Authors, 3)
	assert.Equal(t, Author{
		Valid:        ptr("Y"),
		LastName:     ptr("Smith"),
		ForeName:     ptr("Jane A"),
		Initials:     ptr("JA"),
		Affiliations: []string{"Department of Pediatrics, University of Missouri, Columbia, MO, USA."},
	}, body.Authors[0])
	assert.Empty(t, body.Authors[1].Affiliations)
	assert.Nil(t, body.Authors[2].LastName)
	assert.Equal(t, ptr("FXS Sleep Consortium"), body.Authors[2].CollectiveName)

	assert.Equal(t, []PublicationType{
		{UI: ptr("D016428"), Value: ptr("Journal Article")},
		{UI: ptr("D013485"), Value: ptr("Research Support, Non-U.S. Gov't")},
	}, body.PublicationTypes)

	assert.Equal(t, &JournalInfo{
		Country:     ptr("England"),
		MedlineTA:   ptr("Psychol Med"),
		NlmUniqueID: ptr("1254142"),
		ISSNLinking: ptr("0033-2917"),
	}, mc.JournalInfo)

	require.Len(t, mc.MeshHeadings, 2)
	assert.Equal(t, ptr("Fragile X Syndrome"), mc.MeshHeadings[0].Descriptor.Value)
	assert.Equal(t, ptr("Y"), mc.MeshHeadings[0].Descriptor.MajorTopic)
	assert.Equal(t, []MeshName{{UI: ptr("Q000150"), MajorTopic: ptr("N"), Value: ptr("complications")}}, mc.MeshHeadings[0].Qualifiers)
	assert.Empty(t, mc.MeshHeadings[1].Qualifiers)

	data := first.PubmedData
	require.NotNil(t, data)
	assert.Equal(t, ptr("ppublish"), data.PublicationStatus)
	assert.Equal(t, []HistoryDate{
		{Status: ptr("received"), Year: ptr("2023"), Month: ptr("6"), Day: ptr("1")},
		{Status: ptr("accepted"), Year: ptr("2023"), Month: ptr("11"), Day: ptr("20")},
		{Status: ptr("pubmed"), Year: ptr("2023"), Month: ptr("12"), Day: ptr("2")},
	}, data.History)

	doi, ok := data.ArticleID("doi")
	assert.True(t, ok)
	assert.Equal(t, "10.1017/S0033291723000001", doi)
	_, ok = data.ArticleID("pii")
	assert.False(t, ok)

	require.NotNil(t, data.ReferenceList)
	refs := data.ReferenceList.References
	require.Len(t, refs, 2, "ReferenceList/Title is not a reference")
	assert.Len(t, refs[0].ArticleIDList.ArticleIDs, 2)
	assert.NotNil(t, refs[1].ArticleIDList.ArticleIDs)
	assert.Empty(t, refs[1].ArticleIDList.ArticleIDs)

	second := set.Articles[1]
	require.NotNil(t, second.MedlineCitation)
	assert.Nil(t, second.MedlineCitation.DateRevised)
	assert.Nil(t, second.MedlineCitation.JournalInfo)
	assert.Empty(t, second.MedlineCitation.MeshHeadings)
	sb := second.MedlineCitation.Article
	require.NotNil(t, sb)
	assert.Nil(t, sb.Journal.ISOAbbreviation)
	assert.Equal(t, &PubDate{MedlineDate: ptr("2023 Nov-Dec")}, sb.Journal.JournalIssue.PubDate)
	assert.Nil(t, sb.Journal.JournalIssue.Volume)
	require.Len(t, sb.Abstract.Texts, 1)
	assert.Nil(t, sb.Abstract.Texts[0].Label)
	assert.Equal(t, ptr("Plain abstract without sections."), sb.Abstract.Texts[0].Value)
	assert.Empty(t, sb.Authors)
	assert.Nil(t, second.PubmedData.ReferenceList)
	assert.Empty(t, second.PubmedData.History)
}

func TestRead_MixedContentFixture(t *testing.T) {
	set, err := Read(loadTestdata(t, "efetch_pubmed.xml"))
	require.NoError(t, err)

	got := set.Articles[0].MedlineCitation.Article.Abstract.Texts[1].Value
	want := `Melatonin reduced latency (<i>p</i> < 0.05) in CO<sub>2</sub>-exposed and ` +
		`<mml:math xmlns:mml="http://www.w3.org/1998/Math/MathML"><mml:msup></mml:msup></mml:math> groups.`
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestRead_TwoArticlesEndToEnd(t *testing.T) {
	doc := `<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>1</PMID>
      <Article>
        <Abstract>
          <AbstractText Label="OBJECTIVE">First.</AbstractText>
          <AbstractText Label="METHODS">Second.</AbstractText>
        </Abstract>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation><PMID>2</PMID></MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

	set, err := ReadString(doc)
	require.NoError(t, err)
	require.Len(t, set.Articles, 2)

	texts := set.Articles[0].MedlineCitation.Article.Abstract.Texts
	require.Len(t, texts, 2)
	assert.Equal(t, ptr("OBJECTIVE"), texts[0].Label)
	assert.Equal(t, ptr("METHODS"), texts[1].Label)
	assert.Equal(t, "2", set.Articles[1].PMIDValue())
}

func TestRead_MissingRoot(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty foreign root", doc: `<eSearchResult/>`},
		{name: "articles without set", doc: `<Wrapper><PubmedArticle/></Wrapper>`},
		{name: "root name in text only", doc: `<Note>PubmedArticleSet</Note>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ReadString(tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingRoot)
			assert.NotErrorIs(t, err, ErrMalformedDocument)
			assert.Nil(t, set)
		})
	}
}

func TestRead_MalformedDocument(t *testing.T) {
	for _, doc := range []string{
		"",
		"<PubmedArticleSet><PubmedArticle></PubmedArticleSet>",
		"<PubmedArticleSet>",
		"not xml at all",
	} {
		set, err := ReadString(doc)
		require.Error(t, err, "input %q", doc)
		assert.ErrorIs(t, err, ErrMalformedDocument)
		assert.NotErrorIs(t, err, ErrMissingRoot)
		assert.Nil(t, set)
	}
}

func TestRead_NestedRootFirstMatchWins(t *testing.T) {
	doc := `<Envelope>
  <Header><Note/></Header>
  <PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>10</PMID></MedlineCitation></PubmedArticle></PubmedArticleSet>
  <PubmedArticleSet><PubmedArticle/><PubmedArticle/></PubmedArticleSet>
</Envelope>`

	set, err := ReadString(doc)
	require.NoError(t, err)
	require.Len(t, set.Articles, 1)
	assert.Equal(t, "10", set.Articles[0].PMIDValue())
}

func TestRead_EmptyArticleIsValid(t *testing.T) {
	set, err := ReadString(`<PubmedArticleSet><PubmedArticle/></PubmedArticleSet>`)
	require.NoError(t, err)
	require.Len(t, set.Articles, 1)
	assert.Nil(t, set.Articles[0].MedlineCitation)
	assert.Nil(t, set.Articles[0].PubmedData)
	assert.Equal(t, "", set.Articles[0].PMIDValue())
}

func TestRead_EmptySetHasNonNilSlice(t *testing.T) {
	set, err := ReadString(`<PubmedArticleSet/>`)
	require.NoError(t, err)
	assert.NotNil(t, set.Articles)
	assert.Empty(t, set.Articles)
}

func TestRead_Idempotent(t *testing.T) {
	data := loadTestdata(t, "efetch_pubmed.xml")

	a, err := Read(data)
	require.NoError(t, err)
	b, err := Read(data)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestRead_PreservesRepeatedOrder(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><PubmedData><ArticleIdList>
  <ArticleId IdType="pubmed">3</ArticleId>
  <ArticleId IdType="doi">1</ArticleId>
  <ArticleId IdType="pubmed">3</ArticleId>
</ArticleIdList></PubmedData></PubmedArticle></PubmedArticleSet>`

	set, err := ReadString(doc)
	require.NoError(t, err)

	ids := set.Articles[0].PubmedData.ArticleIDList.ArticleIDs
	assert.Equal(t, []ArticleID{
		{Type: ptr("pubmed"), Value: ptr("3")},
		{Type: ptr("doi"), Value: ptr("1")},
		{Type: ptr("pubmed"), Value: ptr("3")},
	}, ids, "duplicates are kept in source order")
}

func TestRead_UnknownElementsAreIgnored(t *testing.T) {
	base := loadTestdata(t, "efetch_pubmed.xml")
	want, err := Read(base)
	require.NoError(t, err)

	// Insert an unmodelled child into a range of parents.
	parents := []string{
		"<PubmedArticleSet>",
		"<PubmedArticle>",
		`<MedlineCitation Status="MEDLINE" Owner="NLM" IndexingMethod="Automated">`,
		`<Article PubModel="Print-Electronic">`,
		"<Journal>",
		`<JournalIssue CitedMedium="Internet">`,
		"<Abstract>",
		"<PubmedData>",
		"<History>",
		"<ReferenceList>",
		"<MeshHeading>",
	}
	for _, open := range parents {
		t.Run(open, func(t *testing.T) {
			extra := open + `<FutureField Kind="x"><Nested>value</Nested></FutureField>`
			doc := bytes.Replace(base, []byte(open), []byte(extra), 1)
			require.NotEqual(t, base, doc, "fixture must contain %s", open)

			got, err := Read(doc)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestRead_LastSingularAssignmentWins(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><Article>
  <Language>eng</Language>
  <Language>fre</Language>
  <ArticleTitle>Old</ArticleTitle>
  <ArticleTitle>New</ArticleTitle>
</Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

	set, err := ReadString(doc)
	require.NoError(t, err)

	body := set.Articles[0].MedlineCitation.Article
	assert.Equal(t, ptr("fre"), body.Language)
	assert.Equal(t, ptr("New"), body.Title)
}

func TestRead_TitleKeepsDirectTextOnly(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><Article>
<ArticleTitle>Effects of <i>in vitro</i> exposure</ArticleTitle>
</Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

	set, err := ReadString(doc)
	require.NoError(t, err)
	assert.Equal(t, ptr("Effects of  exposure"), set.Articles[0].MedlineCitation.Article.Title)
}

func TestRead_EmptyElementsAreAbsent(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID/><Article>
<ArticleTitle></ArticleTitle>
<Abstract><AbstractText Label="EMPTY"/></Abstract>
</Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

	set, err := ReadString(doc)
	require.NoError(t, err)

	mc := set.Articles[0].MedlineCitation
	require.NotNil(t, mc.PMID)
	assert.Nil(t, mc.PMID.Value)
	assert.Nil(t, mc.PMID.Version)
	assert.Nil(t, mc.Article.Title)
	assert.Nil(t, mc.Article.Abstract.Texts[0].Value)
	assert.Equal(t, ptr("EMPTY"), mc.Article.Abstract.Texts[0].Label)
}

func TestRead_LogsSkippedElements(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)

	_, err := ReadString(`<PubmedArticleSet><PubmedArticle><Unknown/></PubmedArticle></PubmedArticleSet>`, WithLogger(logger))
	require.NoError(t, err)

	var skipped, summary map[string]any
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &skipped))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &summary))

	assert.Equal(t, "PubmedArticle", skipped["parent"])
	assert.Equal(t, "Unknown", skipped["element"])
	assert.Equal(t, float64(1), summary["articles"])
	assert.Equal(t, float64(1), summary["skipped_elements"])
}

func TestArticleSet_JSON(t *testing.T) {
	set, err := ReadString(`<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID Version="2">7</PMID></MedlineCitation></PubmedArticle></PubmedArticleSet>`)
	require.NoError(t, err)

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{"articles":[{"medline_citation":{"pmid":{"value":"7","version":"2"},"mesh_headings":[]}}]}`, string(out))
}

func TestRead_DeepRootBeforeShallowRoot(t *testing.T) {
	doc := `<Envelope>
  <Body><Result><PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>1</PMID></MedlineCitation></PubmedArticle></PubmedArticleSet></Result></Body>
  <PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>2</PMID></MedlineCitation></PubmedArticle></PubmedArticleSet>
</Envelope>`

	set, err := ReadString(doc)
	require.NoError(t, err)
	require.Len(t, set.Articles, 1)
	assert.Equal(t, "1", set.Articles[0].PMIDValue(), "the root earliest in document order wins, not the shallowest")
}

func TestRead_PrefixedElementsAreForeign(t *testing.T) {
	doc := `<PubmedArticleSet xmlns:x="urn:other">
  <x:PubmedArticle><MedlineCitation><PMID>9</PMID></MedlineCitation></x:PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <x:PMID>8</x:PMID>
      <PMID Version="2">7</PMID>
      <Article>
        <x:ArticleTitle>Foreign title</x:ArticleTitle>
        <x:Abstract><AbstractText>foreign</AbstractText></x:Abstract>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

	set, err := ReadString(doc)
	require.NoError(t, err)
	require.Len(t, set.Articles, 1, "<x:PubmedArticle> is not an article")

	mc := set.Articles[0].MedlineCitation
	require.NotNil(t, mc)
	require.NotNil(t, mc.PMID)
	assert.Equal(t, ptr("7"), mc.PMID.Value)
	require.NotNil(t, mc.Article)
	assert.Nil(t, mc.Article.Title)
	assert.Nil(t, mc.Article.Abstract)
}

func TestRead_PrefixedRootIsMissing(t *testing.T) {
	_, err := ReadString(`<x:PubmedArticleSet xmlns:x="urn:other"><PubmedArticle/></x:PubmedArticleSet>`)
	assert.ErrorIs(t, err, ErrMissingRoot)
}

func TestRead_ConcurrentCallsAgree(t *testing.T) {
	data := loadTestdata(t, "efetch_pubmed.xml")
	want, err := Read(data)
	require.NoError(t, err)

	const workers = 8
	results := make([]*ArticleSet, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = Read(data, WithLogger(zerolog.Nop()))
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestPubDate_YearValue(t *testing.T) {
	year, free := "2024", "1998 Dec-1999 Jan"
	assert.Equal(t, "2024", (&PubDate{Year: &year, MedlineDate: &free}).YearValue())
	assert.Equal(t, "1998", (&PubDate{MedlineDate: &free}).YearValue())
	assert.Empty(t, (&PubDate{}).YearValue())
	assert.Empty(t, (*PubDate)(nil).YearValue())
}
