package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/koopa0/toolhub/internal/log"
)

// ScholarToolsetName is the registered name of the scientific search toolset.
const ScholarToolsetName = "scholar"

// ToolSearchSemanticScholar is the name of the paper search tool.
const ToolSearchSemanticScholar = "search_semantic_scholar"

// DefaultSemanticScholarURL is the public Semantic Scholar API base.
const DefaultSemanticScholarURL = "https://api.semanticscholar.org"

// DefaultUnpaywallURL is the public Unpaywall API base.
const DefaultUnpaywallURL = "https://api.unpaywall.org"

// DefaultMaxFulltextChars caps retrieved full text before truncation.
const DefaultMaxFulltextChars = 100000

// scholarAbstractLimit truncates abstracts in search results.
const scholarAbstractLimit = 500

// scholarMaxAuthors bounds how many author names a result lists in full.
const scholarMaxAuthors = 5

// scholarFetchCap is the most papers a single API request asks for.
const scholarFetchCap = 50

// scholarEntryRuler separates papers in the formatted result.
var scholarEntryRuler = strings.Repeat("=", 80)

// scholarSearchFields is the field list requested from the paper search API.
const scholarSearchFields = "title,authors,year,abstract,venue,citationCount,externalIds,url"

// FetchGuard approves and bounds the outbound requests the scholar tools
// make. *security.HTTP implements it.
type FetchGuard interface {
	ValidateURL(urlStr string) error
	MaxResponseSize() int64
}

// SearchSemanticScholarInput defines input for the search_semantic_scholar tool.
type SearchSemanticScholarInput struct {
	Query         string   `json:"query" jsonschema:"the search query string such as 'transformer neural networks' or 'CRISPR gene therapy'"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results to return; defaults to 10"`
	YearRange     string   `json:"year_range,omitempty" jsonschema:"publication year filter such as '2019' or '2016-2020' or '2010-'"`
	FieldsOfStudy []string `json:"fields_of_study,omitempty" jsonschema:"restrict results to fields of study such as 'Computer Science' or 'Biology'"`
}

// ScholarConfig configures the scientific search toolset.
type ScholarConfig struct {
	// SemanticScholarURL is the API base. Empty means the public API.
	SemanticScholarURL string

	// UnpaywallURL is the API base. Empty means the public API.
	UnpaywallURL string

	// Email identifies the caller to the Unpaywall API. Calls may override
	// it per request.
	Email string

	// RequestsPerSecond paces outbound API calls. Zero means 1.
	RequestsPerSecond float64

	// MaxFulltextChars caps retrieved full text. Zero means
	// DefaultMaxFulltextChars.
	MaxFulltextChars int
}

// ScholarToolset wraps the Semantic Scholar and Unpaywall HTTP APIs as
// tools. Results are formatted text reports; API failures are reported
// in-band so the model can react to them. It implements the Toolset
// interface.
type ScholarToolset struct {
	client        *http.Client
	guard         FetchGuard
	scholarBase   string
	unpaywallBase string
	email         string
	maxChars      int
	limiter       *rate.Limiter
	logger        log.Logger
	tools         []Tool
}

// NewScholarToolset creates a ScholarToolset calling the configured API
// bases through client. Every outbound fulltext fetch is vetted by guard.
func NewScholarToolset(client *http.Client, guard FetchGuard, cfg ScholarConfig, logger log.Logger) (*ScholarToolset, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("fetch guard is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	scholarBase := strings.TrimRight(cfg.SemanticScholarURL, "/")
	if scholarBase == "" {
		scholarBase = DefaultSemanticScholarURL
	}
	unpaywallBase := strings.TrimRight(cfg.UnpaywallURL, "/")
	if unpaywallBase == "" {
		unpaywallBase = DefaultUnpaywallURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	maxChars := cfg.MaxFulltextChars
	if maxChars <= 0 {
		maxChars = DefaultMaxFulltextChars
	}

	st := &ScholarToolset{
		client:        client,
		guard:         guard,
		scholarBase:   scholarBase,
		unpaywallBase: unpaywallBase,
		email:         cfg.Email,
		maxChars:      maxChars,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		logger:        logger,
	}

	searchTool, err := New(ToolSearchSemanticScholar,
		"Search for academic papers on Semantic Scholar using a query string. "+
			"Returns the top results with comprehensive metadata including paper title, authors, "+
			"abstract summary, citation count, publication year, and external identifiers (arXiv ID, DOI, etc.). "+
			"Use this tool to find relevant research papers across various fields including machine learning, "+
			"computer science, biology, physics, and more.",
		st.searchSemanticScholar)
	if err != nil {
		return nil, err
	}
	unpaywallTool, err := New(ToolSearchUnpaywall,
		"Search for open access information using the Unpaywall API and optionally retrieve full text. "+
			"Takes a DOI (Digital Object Identifier) and returns open access status, "+
			"available copies, and access links. "+
			"If fetch_fulltext=true, attempts to retrieve the full paper text from the best open access location. "+
			"Returns formatted information about paper metadata and optionally the full text "+
			"if available and within the character limit.",
		st.searchUnpaywall)
	if err != nil {
		return nil, err
	}
	st.tools = []Tool{searchTool, unpaywallTool}

	return st, nil
}

// Name returns the toolset identifier.
func (*ScholarToolset) Name() string {
	return ScholarToolsetName
}

// Tools returns the scholar tools in a stable order.
func (st *ScholarToolset) Tools() []Tool {
	return slices.Clone(st.tools)
}

// searchSemanticScholar queries the paper search endpoint and renders up to
// limit results. The API is asked for twice as many papers (capped at 50)
// so thin records do not starve the result list.
func (st *ScholarToolset) searchSemanticScholar(ctx context.Context, in SearchSemanticScholarInput) (string, error) {
	requestID := uuid.NewString()
	logger := st.logger.With("request_id", requestID)
	logger.Info("search_semantic_scholar called",
		"query", in.Query, "limit", in.Limit, "year_range", in.YearRange)

	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("query", in.Query)
	params.Set("limit", strconv.Itoa(min(limit*2, scholarFetchCap)))
	params.Set("fields", scholarSearchFields)
	if in.YearRange != "" {
		params.Set("year", in.YearRange)
	}
	if len(in.FieldsOfStudy) > 0 {
		params.Set("fieldsOfStudy", strings.Join(in.FieldsOfStudy, ","))
	}
	endpoint := st.scholarBase + "/graph/v1/paper/search?" + params.Encode()

	body, err := st.getJSON(ctx, logger, endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("semantic scholar search canceled: %w", ctx.Err())
		}
		logger.Warn("semantic scholar request failed", "error", err)
		return scholarSearchFailure(err), nil
	}

	var result scholarSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		logger.Warn("semantic scholar response undecodable", "error", err)
		return scholarSearchFailure(err), nil
	}

	if len(result.Data) == 0 {
		return fmt.Sprintf("No papers found for query: '%s'", in.Query), nil
	}

	papers := result.Data
	if len(papers) > limit {
		papers = papers[:limit]
	}
	entries := make([]string, 0, len(papers))
	for i, paper := range papers {
		entries = append(entries, formatScholarPaper(i+1, paper))
	}

	logger.Info("search_semantic_scholar succeeded", "total", result.Total, "returned", len(entries))
	return "\n\n" + scholarEntryRuler + "\n\n" +
		strings.Join(entries, "\n\n"+scholarEntryRuler+"\n\n") +
		"\n\n" + scholarEntryRuler, nil
}

// getJSON performs a rate-limited GET against one of the configured API
// bases and returns the response body. Non-200 statuses are errors.
func (st *ScholarToolset) getJSON(ctx context.Context, logger log.Logger, endpoint string) ([]byte, error) {
	if err := st.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := st.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("closing response body", "error", cerr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, st.guard.MaxResponseSize()))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apiStatusError{status: resp.StatusCode, body: body}
	}
	return body, nil
}

// apiStatusError carries a non-200 API status together with the response
// body for in-band reporting.
type apiStatusError struct {
	status int
	body   []byte
}

func (e *apiStatusError) Error() string {
	msg, _ := truncateRunes(strings.TrimSpace(string(e.body)), 200)
	return fmt.Sprintf("API returned status code %d. Message: %s", e.status, msg)
}

// scholarSearchFailure renders any search failure the way the model is told
// to expect it.
func scholarSearchFailure(err error) string {
	return fmt.Sprintf("Error searching papers: %v\nPlease try again later or with a different query.", err)
}

// isTimeoutErr reports whether err stems from a deadline rather than a
// connection failure.
func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type scholarSearchResponse struct {
	Total int            `json:"total"`
	Data  []scholarPaper `json:"data"`
}

type scholarPaper struct {
	Title         string             `json:"title"`
	Abstract      string             `json:"abstract"`
	Year          int                `json:"year"`
	Venue         string             `json:"venue"`
	CitationCount int                `json:"citationCount"`
	URL           string             `json:"url"`
	ExternalIDs   scholarExternalIDs `json:"externalIds"`
	Authors       []scholarAuthor    `json:"authors"`
}

type scholarExternalIDs struct {
	ArXiv string `json:"ArXiv"`
	DOI   string `json:"DOI"`
}

type scholarAuthor struct {
	Name string `json:"name"`
}

// formatScholarPaper renders one search result. Missing metadata is shown
// as N/A rather than omitted so entries keep a fixed shape.
func formatScholarPaper(index int, p scholarPaper) string {
	year := "N/A"
	if p.Year != 0 {
		year = strconv.Itoa(p.Year)
	}

	abstract := p.Abstract
	if abstract == "" {
		abstract = "N/A"
	} else if cut, truncated := truncateRunes(abstract, scholarAbstractLimit); truncated {
		abstract = cut + "..."
	}

	return fmt.Sprintf(
		"[%d] Title: %s\n"+
			"Authors: %s\n"+
			"Year: %s\n"+
			"Venue: %s\n"+
			"Citation Count: %d\n"+
			"\n"+
			"Summary: %s\n"+
			"\n"+
			"Identifiers:\n"+
			"  - DOI: %s\n"+
			"  - arXiv ID: %s\n"+
			"  - URL: %s",
		index,
		valueOrNA(p.Title),
		formatScholarAuthors(p.Authors),
		year,
		valueOrNA(p.Venue),
		p.CitationCount,
		abstract,
		valueOrNA(p.ExternalIDs.DOI),
		valueOrNA(p.ExternalIDs.ArXiv),
		valueOrNA(p.URL),
	)
}

// formatScholarAuthors lists up to five author names and summarizes the
// rest as an et al. count.
func formatScholarAuthors(authors []scholarAuthor) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 {
		return "N/A"
	}
	listed := strings.Join(names[:min(len(names), scholarMaxAuthors)], ", ")
	if len(names) > scholarMaxAuthors {
		listed += fmt.Sprintf(" et al. (%d total)", len(names))
	}
	return listed
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
