// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/trust-engine/internal/doi"
	"github.com/pdiddy/trust-engine/internal/httputil"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// minContainerChars is the shortest container text accepted before the
// adapter falls back to the whole page body.
const minContainerChars = 500

// contentSelectors are tried in order; the first container whose text
// reaches minContainerChars wins.
var contentSelectors = []string{
	"article",
	`[role="main"]`,
	"main",
	".article-body",
	".article__body",
	".article-content",
	"#article-content",
	".content",
	"#content",
	".post-content",
	".entry-content",
}

// boilerplateSelector matches elements stripped before text extraction.
const boilerplateSelector = "script, style, noscript, nav, footer, header"

// blockSelector matches elements that end a line of text.
const blockSelector = "p, div, br, li, tr, section, article, blockquote, pre, table, ul, ol, dl, dt, dd, figcaption"

// headingSelector matches elements that sit on a line of their own.
const headingSelector = "h1, h2, h3, h4, h5, h6"

// URLAdapter fetches a study page and extracts its readable text.
type URLAdapter struct {
	Fetcher *httputil.Fetcher
	Config  types.HTTPConfig
	// PDF handles URLs that serve a PDF instead of HTML.
	PDF    *PDFAdapter
	Logger zerolog.Logger
}

// Normalize fetches rawURL, strips boilerplate, and returns the main text,
// page metadata, sections, and URL-derived hints.
func (a *URLAdapter) Normalize(ctx context.Context, rawURL string) (*types.ExtractedContent, error) {
	rawURL = strings.TrimSpace(rawURL)

	res, err := a.Fetcher.Get(ctx, rawURL, httputil.FetchOptions{
		Headers: map[string]string{
			"User-Agent": a.Config.UserAgent,
			"Accept":     "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8",
		},
		Timeout:      a.Config.Timeout,
		MaxRedirects: a.Config.MaxRedirects,
	})
	if err != nil {
		kind := KindFetchFailed
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindFetchTimeout
		}
		return nil, &ExtractionError{Kind: kind, Source: rawURL, Err: err}
	}
	if !res.OK() {
		return nil, &ExtractionError{Kind: KindHTTPStatus, Source: rawURL, StatusCode: res.Status}
	}

	hints := URLHints(rawURL)

	if isPDF(res) && a.PDF != nil {
		a.Logger.Debug().Str("url", rawURL).Msg("URL serves a PDF, delegating to PDF adapter")
		content, err := a.PDF.Normalize(ctx, string(res.Body))
		if err != nil {
			return nil, err
		}
		content.SourceURL = res.FinalURL
		content.Hints = hints
		if content.Metadata.DOI == "" {
			content.Metadata.DOI = doi.Find(rawURL)
		}
		return content, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, &ExtractionError{Kind: KindFetchFailed, Source: rawURL, Err: fmt.Errorf("parsing HTML: %w", err)}
	}

	meta := collectMeta(doc)
	md := pageMetadata(doc, meta)

	doc.Find(boilerplateSelector).Remove()
	text := mainText(doc)

	if md.DOI == "" {
		md.DOI = doi.Find(rawURL)
	}
	if md.DOI == "" {
		md.DOI = doi.Find(text)
	}

	a.Logger.Debug().
		Str("url", rawURL).
		Int("chars", len(text)).
		Str("doi", md.DOI).
		Msg("extracted page text")

	return &types.ExtractedContent{
		Text:      text,
		Metadata:  md,
		Sections:  SplitSections(text, URLSectionWindow),
		Hints:     hints,
		SourceURL: res.FinalURL,
	}, nil
}

func isPDF(res *httputil.FetchResult) bool {
	return strings.Contains(strings.ToLower(res.ContentType), "application/pdf") ||
		bytes.HasPrefix(res.Body, []byte("%PDF-"))
}

// mainText returns the text of the first content container long enough to
// be the article, or the whole body otherwise.
func mainText(doc *goquery.Document) string {
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("\n")
		s.AfterHtml("\n")
	})
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	for _, sel := range contentSelectors {
		best := ""
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if t := cleanText(s.Text()); len(t) > len(best) {
				best = t
			}
		})
		if len(best) >= minContainerChars {
			return best
		}
	}
	return cleanText(doc.Find("body").Text())
}

// collectMeta indexes <meta> tags by lowercased name or property.
func collectMeta(doc *goquery.Document) map[string][]string {
	meta := make(map[string][]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("name")
		if !ok {
			key, ok = s.Attr("property")
		}
		if !ok {
			return
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		key = strings.ToLower(strings.TrimSpace(key))
		meta[key] = append(meta[key], content)
	})
	return meta
}

// firstMeta returns the first non-empty value among keys.
func firstMeta(meta map[string][]string, keys ...string) string {
	for _, k := range keys {
		if v := meta[k]; len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// pageMetadata reads the Highwire/Dublin Core/OpenGraph tags scholarly
// publishers embed.
func pageMetadata(doc *goquery.Document, meta map[string][]string) types.StudyMetadata {
	var md types.StudyMetadata

	md.Title = firstMeta(meta, "citation_title", "dc.title", "og:title")
	if md.Title == "" {
		md.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	authors := meta["citation_author"]
	if len(authors) == 0 {
		authors = meta["dc.creator"]
	}
	for _, a := range authors {
		md.Authors = append(md.Authors, strings.TrimSpace(a))
	}

	md.Journal = firstMeta(meta, "citation_journal_title", "prism.publicationname", "dc.source")
	md.PublicationDate = normalizeDate(firstMeta(meta,
		"citation_publication_date", "citation_date", "citation_online_date",
		"dc.date", "prism.publicationdate", "article:published_time"))

	if v := firstMeta(meta, "citation_doi", "prism.doi", "dc.identifier"); v != "" {
		md.DOI = doi.Find(v)
	}
	return md
}

var metaDateRe = regexp.MustCompile(`^(\d{4})(?:[-/](\d{1,2}))?(?:[-/](\d{1,2}))?`)

// normalizeDate converts "2020/3/5" and "2020-03-05T10:00Z" style values to
// YYYY, YYYY-MM, or YYYY-MM-DD. Unrecognized values yield "".
func normalizeDate(s string) string {
	m := metaDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	out := m[1]
	if m[2] != "" {
		out += "-" + pad2(m[2])
		if m[3] != "" {
			out += "-" + pad2(m[3])
		}
	}
	return out
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

var (
	yearTokenRe  = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	separatorRe  = regexp.MustCompile(`[-_.+]+`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// hintStopWords are URL tokens that say nothing about the study.
var hintStopWords = map[string]bool{
	"pdf": true, "html": true, "htm": true, "article": true, "articles": true,
	"full": true, "text": true, "abstract": true, "doi": true, "www": true,
	"com": true, "org": true, "the": true, "and": true, "for": true,
	"content": true, "view": true, "download": true, "fulltext": true,
}

// URLHints mines the URL path for a candidate study name and keyword list.
// It walks segments from the end and uses the first one that still carries
// words after decoding and stripping extensions and year tokens.
func URLHints(rawURL string) *types.SourceHints {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg, err := url.PathUnescape(segments[i])
		if err != nil {
			seg = segments[i]
		}
		if ext := path.Ext(seg); ext != "" && len(ext) <= 6 {
			seg = strings.TrimSuffix(seg, ext)
		}
		seg = separatorRe.ReplaceAllString(seg, " ")
		seg = yearTokenRe.ReplaceAllString(seg, " ")
		seg = strings.TrimSpace(multiSpaceRe.ReplaceAllString(seg, " "))

		keywords := hintKeywords(seg)
		if len(keywords) == 0 {
			continue
		}
		hints := &types.SourceHints{Keywords: keywords}
		if len(keywords) >= 2 {
			hints.StudyName = seg
		}
		return hints
	}
	return nil
}

func hintKeywords(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		if len(tok) < 3 || hintStopWords[tok] || isDigits(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
