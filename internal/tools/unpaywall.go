package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/google/uuid"

	"github.com/koopa0/toolhub/internal/log"
)

// ToolSearchUnpaywall is the name of the open access lookup tool.
const ToolSearchUnpaywall = "search_unpaywall"

// fulltextFetchTimeout bounds one fulltext download attempt. The OA lookup
// itself runs under the client timeout.
const fulltextFetchTimeout = 15 * time.Second

// minFulltextLength is the smallest extraction considered real text rather
// than markup scraps or PDF noise.
const minFulltextLength = 100

var (
	unpaywallRulerEq   = strings.Repeat("=", 70)
	unpaywallRulerDash = strings.Repeat("-", 70)

	pdfMagic = []byte("%PDF")
)

// SearchUnpaywallInput defines input for the search_unpaywall tool.
type SearchUnpaywallInput struct {
	DOI           string `json:"doi" jsonschema:"digital object identifier of the paper such as 10.1038/nature12373; must be a valid DOI"`
	Email         string `json:"email,omitempty" jsonschema:"email address identifying the caller to the Unpaywall API; defaults to the configured address"`
	FetchFulltext bool   `json:"fetch_fulltext,omitempty" jsonschema:"when true the tool also tries to retrieve the full paper text from the open access locations"`
	MaxChars      int    `json:"max_chars,omitempty" jsonschema:"maximum number of characters of full text to return; defaults to 100000"`
}

// searchUnpaywall looks a DOI up in the Unpaywall database and renders an
// open access report. With fetch_fulltext it additionally walks the OA
// locations, best first, until one yields readable text.
func (st *ScholarToolset) searchUnpaywall(ctx context.Context, in SearchUnpaywallInput) (string, error) {
	requestID := uuid.NewString()
	logger := st.logger.With("request_id", requestID)
	logger.Info("search_unpaywall called",
		"doi", in.DOI, "fetch_fulltext", in.FetchFulltext)

	if in.DOI == "" {
		return "ERROR: DOI is required", nil
	}
	email := in.Email
	if email == "" {
		email = st.email
	}
	if email == "" {
		return "ERROR: No email configured for the Unpaywall API. Pass 'email' or set scholar.email in the configuration.", nil
	}

	endpoint := fmt.Sprintf("%s/v2/%s?email=%s", st.unpaywallBase, in.DOI, url.QueryEscape(email))
	body, err := st.getJSON(ctx, logger, endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("unpaywall lookup canceled: %w", ctx.Err())
		}
		var statusErr *apiStatusError
		if errors.As(err, &statusErr) {
			if statusErr.status == http.StatusNotFound {
				return fmt.Sprintf("Paper with DOI '%s' not found in Unpaywall database", in.DOI), nil
			}
			logger.Warn("unpaywall returned error status", "status", statusErr.status)
			return fmt.Sprintf("ERROR: Unpaywall %v", statusErr), nil
		}
		logger.Warn("unpaywall request failed", "error", err)
		if isTimeoutErr(err) {
			return "ERROR: Request to Unpaywall API timed out", nil
		}
		return "ERROR: Failed to connect to Unpaywall API", nil
	}

	var record unpaywallResponse
	if err := json.Unmarshal(body, &record); err != nil {
		logger.Warn("unpaywall response undecodable", "error", err)
		msg, _ := truncateRunes(err.Error(), 200)
		return fmt.Sprintf("ERROR: Unexpected error - %s", msg), nil
	}

	report := formatUnpaywallReport(&record)

	if in.FetchFulltext {
		maxChars := in.MaxChars
		if maxChars <= 0 {
			maxChars = st.maxChars
		}
		text, ok := st.fetchFulltext(ctx, logger, &record, maxChars)
		if ctx.Err() != nil {
			return "", fmt.Errorf("unpaywall fulltext fetch canceled: %w", ctx.Err())
		}
		if ok {
			report += "\n\n" + unpaywallRulerEq + "\n" +
				"FULL TEXT\n" +
				unpaywallRulerEq + "\n" +
				text
		} else {
			report += "\n\nNOTE: Full text could not be retrieved from available OA locations."
		}
	}

	logger.Info("search_unpaywall succeeded", "doi", in.DOI, "is_oa", record.IsOA)
	return report, nil
}

type unpaywallResponse struct {
	Title          string              `json:"title"`
	DOI            string              `json:"doi"`
	JournalName    string              `json:"journal_name"`
	Year           int                 `json:"year"`
	PublishedDate  string              `json:"published_date"`
	IsOA           bool                `json:"is_oa"`
	OAStatus       string              `json:"oa_status"`
	JournalIsOA    bool                `json:"journal_is_oa"`
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
	ZAuthors       []unpaywallAuthor   `json:"z_authors"`
}

type unpaywallLocation struct {
	URL      string `json:"url"`
	HostType string `json:"host_type"`
	Version  string `json:"version"`
	License  string `json:"license"`
}

type unpaywallAuthor struct {
	Raw    string `json:"raw_author_name"`
	Given  string `json:"given"`
	Family string `json:"family"`
}

// formatUnpaywallReport renders the open access report. Sections with no
// data are dropped entirely rather than filled with placeholders.
func formatUnpaywallReport(r *unpaywallResponse) string {
	lines := []string{
		unpaywallRulerEq,
		"UNPAYWALL OPEN ACCESS INFORMATION",
		unpaywallRulerEq,
	}

	if r.Title != "" {
		lines = append(lines, "\nTitle: "+r.Title)
	}
	if r.DOI != "" {
		lines = append(lines, "DOI: "+r.DOI)
	}
	if r.JournalName != "" {
		lines = append(lines, "Journal: "+r.JournalName)
	}
	if r.Year != 0 {
		lines = append(lines, fmt.Sprintf("Year: %d", r.Year))
	}

	lines = append(lines, "\n"+unpaywallRulerDash, "OPEN ACCESS STATUS", unpaywallRulerDash)
	lines = append(lines, fmt.Sprintf("Is Open Access: %t", r.IsOA))
	status := r.OAStatus
	if status == "" {
		status = "unknown"
	}
	lines = append(lines, "OA Status: "+status)
	if r.JournalIsOA {
		lines = append(lines, "Journal is fully open access: Yes")
	}

	if r.BestOALocation != nil {
		lines = append(lines, "\n"+unpaywallRulerDash, "BEST OPEN ACCESS LOCATION", unpaywallRulerDash)
		lines = append(lines, formatUnpaywallLocation(*r.BestOALocation, "")...)
	}

	if len(r.OALocations) > 0 {
		lines = append(lines, "\n"+unpaywallRulerDash, "ALL OPEN ACCESS LOCATIONS", unpaywallRulerDash)
		for i, loc := range r.OALocations {
			lines = append(lines, fmt.Sprintf("\nLocation %d:", i+1))
			lines = append(lines, formatUnpaywallLocation(loc, "  ")...)
		}
	}

	lines = append(lines, "\n"+unpaywallRulerDash, "ADDITIONAL INFORMATION", unpaywallRulerDash)
	if r.PublishedDate != "" {
		lines = append(lines, "Published Date: "+r.PublishedDate)
	}
	if authors := formatUnpaywallAuthors(r.ZAuthors); authors != "" {
		lines = append(lines, "AUTHORS: "+authors)
	}

	lines = append(lines, "\n"+unpaywallRulerEq)
	return strings.Join(lines, "\n")
}

func formatUnpaywallLocation(loc unpaywallLocation, indent string) []string {
	var lines []string
	if loc.URL != "" {
		lines = append(lines, indent+"URL: "+loc.URL)
	}
	if loc.HostType != "" {
		lines = append(lines, indent+"Host Type: "+loc.HostType)
	}
	if loc.Version != "" {
		lines = append(lines, indent+"Version: "+loc.Version)
	}
	if loc.License != "" {
		lines = append(lines, indent+"License: "+loc.License)
	}
	return lines
}

// formatUnpaywallAuthors prefers the raw CrossRef name and falls back to
// assembling given and family names.
func formatUnpaywallAuthors(authors []unpaywallAuthor) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		name := a.Raw
		if name == "" {
			name = strings.TrimSpace(a.Given + " " + a.Family)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	listed := strings.Join(names[:min(len(names), scholarMaxAuthors)], ", ")
	if len(names) > scholarMaxAuthors {
		listed += fmt.Sprintf(", ... and %d more", len(names)-scholarMaxAuthors)
	}
	return listed
}

// fetchFulltext tries each open access location until one yields text, and
// truncates the winner to maxChars.
func (st *ScholarToolset) fetchFulltext(ctx context.Context, logger log.Logger, r *unpaywallResponse, maxChars int) (string, bool) {
	for _, target := range candidateOALocations(r) {
		if err := st.guard.ValidateURL(target); err != nil {
			logger.Warn("fulltext location rejected", "url", target, "error", err)
			continue
		}
		logger.Debug("attempting fulltext fetch", "url", target)
		text, ok := st.fetchTextFrom(ctx, logger, target)
		if !ok {
			continue
		}
		if cut, truncated := truncateRunes(text, maxChars); truncated {
			text = cut + fmt.Sprintf("\n\n[... text truncated at %d characters ...]", maxChars)
		}
		return text, true
	}
	return "", false
}

// candidateOALocations lists fetchable URLs, best location first, without
// duplicates.
func candidateOALocations(r *unpaywallResponse) []string {
	var urls []string
	if r.BestOALocation != nil && r.BestOALocation.URL != "" {
		urls = append(urls, r.BestOALocation.URL)
	}
	for _, loc := range r.OALocations {
		if loc.URL != "" && !slices.Contains(urls, loc.URL) {
			urls = append(urls, loc.URL)
		}
	}
	return urls
}

// fetchTextFrom downloads one location and extracts text according to the
// content type: PDFs get the printable-ASCII salvage, HTML goes through
// readability with a PDF-link fallback, and anything else is taken as-is.
func (st *ScholarToolset) fetchTextFrom(ctx context.Context, logger log.Logger, target string) (string, bool) {
	body, contentType, err := st.fetchRaw(ctx, target)
	if err != nil {
		logger.Debug("fulltext fetch failed", "url", target, "error", err)
		return "", false
	}

	switch {
	case strings.Contains(contentType, "application/pdf") || bytes.HasPrefix(body, pdfMagic):
		return extractPDFText(body)

	case strings.Contains(contentType, "text/html"):
		if text, ok := extractHTMLText(body, target); ok {
			return text, true
		}
		// Landing pages often only link to the PDF. Follow one such link.
		pdfURL, ok := findPDFLink(body, target)
		if !ok {
			return "", false
		}
		if err := st.guard.ValidateURL(pdfURL); err != nil {
			logger.Warn("pdf link rejected", "url", pdfURL, "error", err)
			return "", false
		}
		logger.Debug("following pdf link from landing page", "url", pdfURL)
		pdfBody, pdfType, err := st.fetchRaw(ctx, pdfURL)
		if err != nil {
			logger.Debug("pdf fetch failed", "url", pdfURL, "error", err)
			return "", false
		}
		if strings.Contains(pdfType, "application/pdf") || bytes.HasPrefix(pdfBody, pdfMagic) {
			return extractPDFText(pdfBody)
		}
		return "", false

	default:
		text := strings.TrimSpace(string(body))
		return text, text != ""
	}
}

// fetchRaw downloads target under the fulltext timeout and the response
// size cap. Statuses of 400 and above are errors.
func (st *ScholarToolset) fetchRaw(ctx context.Context, target string) ([]byte, string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fulltextFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := st.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, st.guard.MaxResponseSize()))
	if err != nil {
		return nil, "", err
	}
	return body, strings.ToLower(resp.Header.Get("Content-Type")), nil
}

// extractHTMLText pulls the readable article text out of an HTML page.
func extractHTMLText(body []byte, pageURL string) (string, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) < minFulltextLength {
		return "", false
	}
	return text, true
}

// findPDFLink looks for a PDF reference in an HTML landing page: the
// citation_pdf_url meta tag first, then the first anchor pointing at a .pdf
// path. Relative references are resolved against the page URL.
func findPDFLink(body []byte, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}

	if content, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content"); ok && strings.TrimSpace(content) != "" {
		return resolveHTMLRef(base, content)
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		abs, ok := resolveHTMLRef(base, href)
		if !ok {
			return true
		}
		if u, err := url.Parse(abs); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			found = abs
			return false
		}
		return true
	})
	return found, found != ""
}

func resolveHTMLRef(base *url.URL, ref string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(parsed).String(), true
}

// extractPDFText salvages printable ASCII from a PDF byte stream. It is a
// crude fallback that works on uncompressed text objects; a short result is
// treated as extraction failure.
func extractPDFText(content []byte) (string, bool) {
	var b strings.Builder
	for _, c := range content {
		if (c >= 32 && c <= 126) || c == '\t' || c == '\n' || c == '\r' {
			b.WriteByte(c)
		}
	}
	text := strings.TrimSpace(b.String())
	if len(text) <= minFulltextLength {
		return "", false
	}
	return text, true
}
