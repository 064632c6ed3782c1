// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/trust-engine/internal/doi"
	"github.com/pdiddy/trust-engine/internal/httputil"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// Registry endpoints. Declared as vars so tests can substitute httptest servers.
var (
	crossrefAPIBase = "https://api.crossref.org/works/"
	openAlexAPIBase = "https://api.openalex.org/works/"
)

// DOIAdapter resolves a DOI to bibliographic metadata and an abstract.
type DOIAdapter struct {
	Fetcher       *httputil.Fetcher
	Config        types.HTTPConfig
	OpenAlexEmail string
	Logger        zerolog.Logger
}

// Normalize looks the DOI up in CrossRef, then asks OpenAlex for an
// open-access pointer and a fallback abstract, and assembles a synthetic
// text from title, authors, journal, and abstract.
func (a *DOIAdapter) Normalize(ctx context.Context, input string) (*types.ExtractedContent, error) {
	id := doi.Normalize(input)

	work, err := a.fetchCrossRef(ctx, id)
	if err != nil {
		return nil, err
	}

	md := work.metadata()
	md.DOI = id
	abstract := stripMarkup(work.Abstract)

	sourceURL := "https://doi.org/" + id
	oa, err := a.fetchOpenAlex(ctx, id)
	if err != nil {
		a.Logger.Warn().Err(err).Str("doi", id).Msg("OpenAlex lookup failed")
	} else {
		if abstract == "" {
			abstract = reconstructAbstract(oa.AbstractInvertedIndex)
		}
		if p := oa.pointer(); p != "" {
			sourceURL = p
		}
	}

	content := &types.ExtractedContent{
		Text:      buildDOIText(md, abstract),
		Metadata:  md,
		SourceURL: sourceURL,
	}
	if abstract != "" {
		content.Sections = &types.Sections{Abstract: abstract}
	}
	return content, nil
}

func (a *DOIAdapter) options(accept string) httputil.FetchOptions {
	return httputil.FetchOptions{
		Headers: map[string]string{
			"User-Agent": a.Config.UserAgent,
			"Accept":     accept,
		},
		Timeout:      a.Config.Timeout,
		MaxRedirects: a.Config.MaxRedirects,
	}
}

// escapeDOI escapes each path segment of a DOI so suffixes carrying '#',
// '?', or '<>' (SICI-style) reach the registry intact.
func escapeDOI(id string) string {
	segs := strings.Split(id, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// fetchCrossRef retrieves the CrossRef work record and maps failures to
// not-found, timeout, and unavailable kinds.
func (a *DOIAdapter) fetchCrossRef(ctx context.Context, id string) (*crossrefWork, error) {
	res, err := a.Fetcher.Get(ctx, crossrefAPIBase+escapeDOI(id), a.options("application/json"))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ExtractionError{Kind: KindDOITimeout, Source: id, Err: err}
		}
		return nil, &ExtractionError{Kind: KindDOIUnavailable, Source: id, Err: err}
	}

	switch {
	case res.Status == http.StatusNotFound:
		return nil, &ExtractionError{Kind: KindDOINotFound, Source: id, StatusCode: res.Status}
	case res.Status >= 500:
		return nil, &ExtractionError{Kind: KindDOIUnavailable, Source: id, StatusCode: res.Status}
	case !res.OK():
		return nil, &ExtractionError{Kind: KindHTTPStatus, Source: id, StatusCode: res.Status}
	}

	var cr crossrefResponse
	if err := json.Unmarshal(res.Body, &cr); err != nil {
		return nil, &ExtractionError{Kind: KindDOIUnavailable, Source: id, Err: fmt.Errorf("parsing CrossRef response: %w", err)}
	}
	return &cr.Message, nil
}

// fetchOpenAlex retrieves the OpenAlex work for a DOI.
func (a *DOIAdapter) fetchOpenAlex(ctx context.Context, id string) (*openAlexWork, error) {
	apiURL := openAlexAPIBase + "https://doi.org/" + escapeDOI(id)
	if a.OpenAlexEmail != "" {
		apiURL += "?mailto=" + url.QueryEscape(a.OpenAlexEmail)
	}

	res, err := a.Fetcher.Get(ctx, apiURL, a.options("application/json"))
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", res.Status)
	}

	var work openAlexWork
	if err := json.Unmarshal(res.Body, &work); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return &work, nil
}

// buildDOIText renders resolved metadata and abstract as the document text.
func buildDOIText(md types.StudyMetadata, abstract string) string {
	var b strings.Builder
	if md.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", md.Title)
	}
	if len(md.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(md.Authors, ", "))
	}
	if md.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s\n", md.Journal)
	}
	if md.PublicationDate != "" {
		fmt.Fprintf(&b, "Published: %s\n", md.PublicationDate)
	}
	if md.DOI != "" {
		fmt.Fprintf(&b, "DOI: %s\n", md.DOI)
	}
	if len(md.FundingSources) > 0 {
		fmt.Fprintf(&b, "Funding: %s\n", strings.Join(md.FundingSources, "; "))
	}
	if abstract != "" {
		fmt.Fprintf(&b, "\nAbstract:\n%s\n", abstract)
	}
	return strings.TrimSpace(b.String())
}

var markupRe = regexp.MustCompile(`<[^>]+>`)

// stripMarkup removes JATS/HTML tags CrossRef embeds in abstracts.
func stripMarkup(s string) string {
	return cleanText(markupRe.ReplaceAllString(s, " "))
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title           []string         `json:"title"`
	Abstract        string           `json:"abstract"`
	Author          []crossrefAuthor `json:"author"`
	ContainerTitle  []string         `json:"container-title"`
	Published       crossrefDate     `json:"published"`
	PublishedPrint  crossrefDate     `json:"published-print"`
	PublishedOnline crossrefDate     `json:"published-online"`
	Issued          crossrefDate     `json:"issued"`
	Funder          []crossrefFunder `json:"funder"`
}

type crossrefAuthor struct {
	Given       string                `json:"given"`
	Family      string                `json:"family"`
	Name        string                `json:"name"`
	Affiliation []crossrefAffiliation `json:"affiliation"`
}

type crossrefAffiliation struct {
	Name string `json:"name"`
}

type crossrefFunder struct {
	Name string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

// format renders date parts as YYYY, YYYY-MM, or YYYY-MM-DD.
func (d crossrefDate) format() string {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == 0 {
		return ""
	}
	parts := d.DateParts[0]
	switch {
	case len(parts) >= 3:
		return fmt.Sprintf("%04d-%02d-%02d", parts[0], parts[1], parts[2])
	case len(parts) == 2:
		return fmt.Sprintf("%04d-%02d", parts[0], parts[1])
	default:
		return fmt.Sprintf("%04d", parts[0])
	}
}

// metadata maps a CrossRef work onto StudyMetadata, leaving absent fields empty.
func (w *crossrefWork) metadata() types.StudyMetadata {
	var md types.StudyMetadata
	if len(w.Title) > 0 {
		md.Title = strings.TrimSpace(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		md.Journal = strings.TrimSpace(w.ContainerTitle[0])
	}
	for _, d := range []crossrefDate{w.Published, w.PublishedPrint, w.PublishedOnline, w.Issued} {
		if s := d.format(); s != "" {
			md.PublicationDate = s
			break
		}
	}

	seenAff := make(map[string]bool)
	for _, a := range w.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name != "" {
			md.Authors = append(md.Authors, name)
		}
		for _, aff := range a.Affiliation {
			if n := strings.TrimSpace(aff.Name); n != "" && !seenAff[n] {
				seenAff[n] = true
				md.Affiliations = append(md.Affiliations, n)
			}
		}
	}
	for _, f := range w.Funder {
		if n := strings.TrimSpace(f.Name); n != "" {
			md.FundingSources = append(md.FundingSources, n)
		}
	}
	return md
}

// OpenAlex API JSON structures.
type openAlexWork struct {
	BestOALocation        *openAlexLocation `json:"best_oa_location"`
	AbstractInvertedIndex map[string][]int  `json:"abstract_inverted_index"`
}

type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// pointer returns the open-access PDF URL, or the landing page when no PDF
// is listed.
func (w *openAlexWork) pointer() string {
	if w.BestOALocation == nil {
		return ""
	}
	if w.BestOALocation.PDFURL != "" {
		return w.BestOALocation.PDFURL
	}
	return w.BestOALocation.LandingURL
}
