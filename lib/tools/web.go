// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Web fetch limits.
const (
	webFetchTimeout = 30 * time.Second

	// webFetchMaxBytes caps the download size before any text
	// extraction.
	webFetchMaxBytes = 5 * 1024 * 1024

	// webFetchMaxChars caps the text returned to the model.
	webFetchMaxChars = 100_000
)

// webUserAgent is a browser-like agent string; several sites
// (GitHub redirects among them) reject obvious bot agents.
const webUserAgent = "Mozilla/5.0 (compatible; mend/1.0)"

// webTools returns the web access tool set.
func webTools(workspace *Workspace) []*Tool {
	return []*Tool{
		{
			Name:        "web_fetch",
			Description: "Fetch a URL and return its text content. HTML is reduced to plain text.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"url": {"type": "string", "description": "HTTP or HTTPS URL to fetch"},
					"extract_text": {"type": "boolean", "description": "Strip HTML markup. Defaults to true."}
				},
				"required": ["url"]
			}`),
			run: func(ctx context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Url         string `json:"url"`
					ExtractText *bool  `json:"extract_text"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				extract := params.ExtractText == nil || *params.ExtractText
				return workspace.webFetch(ctx, params.Url, extract)
			},
		},
	}
}

func (workspace *Workspace) webFetch(ctx context.Context, rawURL string, extractText bool) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, webFetchTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	request.Header.Set("User-Agent", webUserAgent)

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: HTTP %d", rawURL, response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, webFetchMaxBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", rawURL, err)
	}

	text := string(body)
	contentType := response.Header.Get("Content-Type")
	if extractText && strings.Contains(contentType, "html") {
		text = htmlToText(text)
	}

	if len(text) > webFetchMaxChars {
		text = truncateToRune(text, webFetchMaxChars) +
			fmt.Sprintf("\n[content truncated at %d chars]", webFetchMaxChars)
	}
	return text, nil
}

var (
	htmlScriptPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagPattern    = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// htmlToText reduces an HTML document to readable plain text: script
// and style blocks removed, tags stripped, common entities decoded,
// blank-line runs collapsed. Crude but sufficient for documentation
// pages; structured extraction is not a goal.
func htmlToText(html string) string {
	text := htmlScriptPattern.ReplaceAllString(html, "")
	text = htmlTagPattern.ReplaceAllString(text, " ")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	text = replacer.Replace(text)

	// Collapse the whitespace left behind by stripped markup.
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.Join(strings.Fields(line), " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
