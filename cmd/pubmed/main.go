// Command pubmed searches NCBI PubMed and turns EFetch XML into typed article
// records.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/henrybloomingdale/pubmed-records/internal/config"
	"github.com/henrybloomingdale/pubmed-records/internal/eutils"
	"github.com/henrybloomingdale/pubmed-records/internal/logging"
	"github.com/henrybloomingdale/pubmed-records/internal/mesh"
	"github.com/henrybloomingdale/pubmed-records/internal/ncbi"
	"github.com/henrybloomingdale/pubmed-records/internal/output"
	"github.com/henrybloomingdale/pubmed-records/internal/pubmed"
)

var (
	flagJSON     bool
	flagHuman    bool
	flagFull     bool
	flagCSV      string
	flagRIS      string
	flagLimit    int
	flagSort     string
	flagYear     string
	flagType     string
	flagAPIKey   string
	flagConfig   string
	flagLogLevel string
	flagRecords  bool
)

// Loaded in the root PersistentPreRunE.
var (
	settings *config.Config
	logger   = zerolog.Nop()
)

var (
	yearRe = regexp.MustCompile(`^\d{4}$`)
	pmidRe = regexp.MustCompile(`^\d+$`)
)

// validSorts maps --sort values to ESearch sort parameters. ESearch has no
// citation-count order, so cited falls back to relevance.
var validSorts = map[string]string{
	"relevance": "relevance",
	"date":      "pub_date",
	"cited":     "relevance",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pubmed",
	Short: "PubMed E-utilities CLI",
	Long: `A command-line interface for searching and retrieving articles from NCBI PubMed
using the E-utilities API, and for turning EFetch XML into typed article records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateGlobalFlags(cmd); err != nil {
			return err
		}
		return loadSettings()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flagJSON, "json", false, "Output as structured JSON")
	pf.BoolVarP(&flagHuman, "human", "H", false, "Rich colorful terminal output")
	pf.BoolVar(&flagFull, "full", false, "Show full abstract (with --human)")
	pf.StringVar(&flagCSV, "csv", "", "Export results to CSV file")
	pf.StringVar(&flagRIS, "ris", "", "Export articles to RIS file (fetch and parse only)")
	pf.IntVar(&flagLimit, "limit", 20, "Maximum number of results")
	pf.StringVar(&flagSort, "sort", "", "Sort order: relevance, date, or cited")
	pf.StringVar(&flagYear, "year", "", "Filter by year or year range (e.g., 2024 or 2020-2025)")
	pf.StringVar(&flagType, "type", "", "Filter by publication type (review, trial, meta-analysis)")
	pf.StringVar(&flagAPIKey, "api-key", "", "NCBI API key (or set PUBMED_API_KEY / NCBI_API_KEY)")
	pf.StringVar(&flagConfig, "config", "", "Config file (default $HOME/.config/pubmed/config.yaml)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Diagnostic log level: trace, debug, info, warn, error")

	fetchCmd.Flags().BoolVar(&flagRecords, "records", false, "Print the complete parsed record graph instead of summaries")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(citedByCmd)
	rootCmd.AddCommand(referencesCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(meshCmd)
}

// loadSettings reads configuration and builds the logger. Flags override
// config file and environment values.
func loadSettings() error {
	v := viper.New()
	if flagConfig != "" {
		v.SetConfigFile(flagConfig)
	}
	if flagLogLevel != "" {
		v.Set("log.level", flagLogLevel)
	}
	if flagAPIKey != "" {
		v.Set("api_key", flagAPIKey)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	settings = cfg
	logger = logging.New(cfg.Log)
	logger.Debug().
		Str("base_url", cfg.BaseURL).
		Bool("api_key", cfg.APIKey != "").
		Msg("configuration loaded")
	return nil
}

// validateGlobalFlags rejects flag values no command can use.
func validateGlobalFlags(cmd *cobra.Command) error {
	if flagLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", flagLimit)
	}
	if flagSort != "" {
		if _, ok := validSorts[strings.ToLower(flagSort)]; !ok {
			return fmt.Errorf("--sort must be one of relevance, date, cited; got %q", flagSort)
		}
	}
	if flagYear != "" {
		if _, _, err := parseYearRange(flagYear); err != nil {
			return err
		}
	}
	if flagRIS != "" {
		switch cmd.Name() {
		case "fetch", "parse":
		default:
			return fmt.Errorf("--ris is only supported by fetch and parse, not %s", cmd.Name())
		}
	}
	return nil
}

// parseYearRange accepts "YYYY" or an ascending "YYYY-YYYY".
func parseYearRange(s string) (string, string, error) {
	minYear, maxYear, isRange := strings.Cut(strings.TrimSpace(s), "-")
	if !isRange {
		maxYear = minYear
	}
	minYear = strings.TrimSpace(minYear)
	maxYear = strings.TrimSpace(maxYear)

	if !yearRe.MatchString(minYear) || !yearRe.MatchString(maxYear) {
		return "", "", fmt.Errorf("--year must be YYYY or YYYY-YYYY, got %q", s)
	}
	if minYear > maxYear {
		return "", "", fmt.Errorf("--year range %q is descending", s)
	}
	return minYear, maxYear, nil
}

// normalizePMIDArgs splits comma or space separated PMIDs, validates them
// and drops duplicates while keeping the first occurrence order.
func normalizePMIDArgs(args []string) ([]string, error) {
	pmids := lo.FlatMap(args, func(arg string, _ int) []string {
		return strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	})
	if len(pmids) == 0 {
		return nil, fmt.Errorf("at least one PMID is required")
	}
	for _, id := range pmids {
		if !pmidRe.MatchString(id) {
			return nil, fmt.Errorf("invalid PMID %q", id)
		}
	}
	return lo.Uniq(pmids), nil
}

func outputCfg() output.OutputConfig {
	return output.OutputConfig{
		JSON:    flagJSON,
		Human:   flagHuman,
		Full:    flagFull,
		CSVFile: flagCSV,
		RISFile: flagRIS,
	}
}

func newBaseClient() *ncbi.BaseClient {
	var opts []ncbi.Option
	if settings != nil {
		opts = settings.ClientOptions()
	}
	opts = append(opts, ncbi.WithLogger(logger))
	return ncbi.NewBaseClient(opts...)
}

func newEutilsClient() *eutils.Client {
	return eutils.New(newBaseClient())
}

func newMeshClient() *mesh.Client {
	return mesh.NewClient(newBaseClient())
}

// buildQuery joins the query words and appends the --type filter.
func buildQuery(args []string) string {
	query := strings.Join(args, " ")
	if flagType == "" {
		return query
	}
	pt, ok := publicationTypeTerms[strings.ToLower(flagType)]
	if !ok {
		pt = flagType
	}
	return fmt.Sprintf("%s AND %q[pt]", query, pt)
}

// publicationTypeTerms expands --type shorthands to PubMed publication types.
var publicationTypeTerms = map[string]string{
	"review":        "review",
	"trial":         "clinical trial",
	"meta-analysis": "meta-analysis",
	"randomized":    "randomized controlled trial",
	"case-report":   "case reports",
}

// searchCmd implements the search subcommand.
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search PubMed with Boolean/MeSH queries",
	Long:  `Search PubMed using Boolean operators and MeSH terms. Returns PMIDs and result counts.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newEutilsClient()
		query := buildQuery(args)
		cfg := outputCfg()

		opts := &eutils.SearchOptions{
			Limit: flagLimit,
			Sort:  validSorts[strings.ToLower(flagSort)],
		}
		if strings.EqualFold(flagSort, "cited") {
			logger.Warn().Msg("ESearch cannot sort by citations; using relevance")
		}
		if flagYear != "" {
			opts.MinDate, opts.MaxDate, _ = parseYearRange(flagYear)
		}

		result, err := client.Search(cmd.Context(), query, opts)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		// Auto-fetch articles for --human or --csv (rich table/export)
		var articles []eutils.Article
		if (cfg.Human || cfg.CSVFile != "") && len(result.IDs) > 0 {
			articles, err = client.Fetch(cmd.Context(), result.IDs)
			if err != nil {
				logger.Warn().Err(err).Msg("could not fetch article details; showing PMIDs only")
				articles = nil
			}
		}

		return output.FormatSearchResult(cmd.OutOrStdout(), result, articles, cfg)
	},
}

// fetchCmd implements the fetch subcommand.
var fetchCmd = &cobra.Command{
	Use:   "fetch <pmid> [pmid...]",
	Short: "Fetch full article details",
	Long: `Retrieve full article details including abstract, authors, DOI, and MeSH terms for one or more PMIDs.
PMIDs may be separated by spaces or commas. --records prints the complete parsed record graph.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pmids, err := normalizePMIDArgs(args)
		if err != nil {
			return err
		}
		client := newEutilsClient()

		set, err := client.FetchRecords(cmd.Context(), pmids)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		if len(set.Articles) < len(pmids) {
			logger.Warn().
				Int("requested", len(pmids)).
				Int("returned", len(set.Articles)).
				Msg("some PMIDs returned no record")
		}

		cfg := outputCfg()
		cfg.Records = flagRecords
		return output.FormatArticleSet(cmd.OutOrStdout(), set, cfg)
	},
}

// parseCmd implements the parse subcommand.
var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Parse a saved EFetch PubMed XML document",
	Long: `Read EFetch PubMed XML from a file (or stdin when the argument is "-" or absent)
and print the typed article records. --json prints the complete record graph.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "-"
		if len(args) == 1 {
			name = args[0]
		}

		data, err := readInput(cmd.InOrStdin(), name)
		if err != nil {
			return err
		}

		set, err := pubmed.Read(data, pubmed.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		cfg := outputCfg()
		cfg.Records = true
		return output.FormatArticleSet(cmd.OutOrStdout(), set, cfg)
	},
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// citedByCmd implements the cited-by subcommand.
var citedByCmd = &cobra.Command{
	Use:   "cited-by <pmid>",
	Short: "Find papers that cite this article",
	Long:  `Find papers in PubMed that cite the given article.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLink(cmd, args[0], "cited-by", (*eutils.Client).CitedBy)
	},
}

// referencesCmd implements the references subcommand.
var referencesCmd = &cobra.Command{
	Use:   "references <pmid>",
	Short: "Find papers cited by this article",
	Long:  `List the references cited by the given article.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLink(cmd, args[0], "references", (*eutils.Client).References)
	},
}

// relatedCmd implements the related subcommand.
var relatedCmd = &cobra.Command{
	Use:   "related <pmid>",
	Short: "Find similar articles",
	Long:  `Find articles similar to the given article, ranked by relevance score.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLink(cmd, args[0], "related", (*eutils.Client).Related)
	},
}

type linkFunc func(c *eutils.Client, ctx context.Context, pmid string) (*eutils.LinkResult, error)

func runLink(cmd *cobra.Command, arg, linkType string, lookup linkFunc) error {
	pmids, err := normalizePMIDArgs([]string{arg})
	if err != nil {
		return err
	}
	if len(pmids) != 1 {
		return fmt.Errorf("%s takes exactly one PMID, got %d", linkType, len(pmids))
	}

	client := newEutilsClient()
	result, err := lookup(client, cmd.Context(), pmids[0])
	if err != nil {
		return fmt.Errorf("%s lookup failed: %w", linkType, err)
	}
	return formatLinkResults(cmd, client, result, linkType)
}

// formatLinkResults handles output for link commands, fetching article
// details for human mode and CSV export.
func formatLinkResults(cmd *cobra.Command, client *eutils.Client, result *eutils.LinkResult, linkType string) error {
	cfg := outputCfg()
	w := cmd.OutOrStdout()

	if cfg.JSON || (!cfg.Human && cfg.CSVFile == "") || len(result.Links) == 0 {
		return output.FormatLinks(w, result, linkType, cfg)
	}

	set, err := client.LinkedRecords(cmd.Context(), result, flagLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch linked article details; showing PMIDs only")
		return output.FormatLinks(w, result, linkType, cfg)
	}

	limited := *result
	limited.Links = result.Links[:min(flagLimit, len(result.Links))]
	return output.FormatLinksWithArticles(w, &limited, eutils.ArticlesFromSet(set), linkType, cfg)
}

// meshCmd implements the mesh subcommand.
var meshCmd = &cobra.Command{
	Use:   "mesh <term>",
	Short: "Look up a MeSH term",
	Long: `Search for a MeSH (Medical Subject Headings) term, or a descriptor UI such as D005600,
and display its record including tree numbers, scope note, and synonyms.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newMeshClient()
		term := strings.Join(args, " ")

		record, err := client.Lookup(cmd.Context(), term)
		if err != nil {
			return fmt.Errorf("MeSH lookup failed: %w", err)
		}

		return output.FormatMeSHRecord(cmd.OutOrStdout(), record, outputCfg())
	},
}
