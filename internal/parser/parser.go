// Package parser ingests DASH, HLS, and Smooth Streaming manifests into the
// canonical model.TrackSet, per §4.1.
package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/reelvault/reelvault/internal/model"
)

// Parser parses one manifest format into a TrackSet.
type Parser interface {
	// Parse fetches and parses the manifest at urlStr, tagging every
	// produced track with source.
	Parse(ctx context.Context, urlStr string, source string, headers map[string]string) (*model.TrackSet, error)
	CanParse(urlStr string) bool
}

// Registry dispatches to the first parser able to handle a manifest URL.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry with the three built-in format parsers.
func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			NewHLSParser(),
			NewDASHParser(),
			NewISMParser(),
		},
	}
}

// Parse finds the first parser that claims urlStr and runs it.
func (r *Registry) Parse(ctx context.Context, urlStr, source string, headers map[string]string) (*model.TrackSet, error) {
	for _, p := range r.parsers {
		if p.CanParse(urlStr) {
			return p.Parse(ctx, urlStr, source, headers)
		}
	}
	return nil, fmt.Errorf("no parser registered for manifest URL: %s", urlStr)
}

// httpFetch performs a GET with the given headers and returns the body as a
// string. Shared by all three format parsers.
func httpFetch(ctx context.Context, client *http.Client, urlStr string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, urlStr)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// resolveURL resolves a relative URL against a base URL, leaving already
// absolute URLs untouched.
func resolveURL(base *url.URL, relative string) string {
	if strings.HasPrefix(relative, "http://") || strings.HasPrefix(relative, "https://") {
		return relative
	}
	rel, err := url.Parse(relative)
	if err != nil {
		return relative
	}
	return base.ResolveReference(rel).String()
}

// parseByteRange parses a BYTERANGE attribute: "length@offset" (HLS) or
// "start-end" (DASH).
func parseByteRange(s string) *model.ByteRange {
	s = strings.Trim(s, "\"")
	if strings.Contains(s, "@") {
		parts := strings.SplitN(s, "@", 2)
		length, _ := strconv.ParseInt(parts[0], 10, 64)
		var start int64
		if len(parts) > 1 {
			start, _ = strconv.ParseInt(parts[1], 10, 64)
		}
		return &model.ByteRange{Start: start, End: start + length - 1}
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return nil
	}
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end, _ := strconv.ParseInt(parts[1], 10, 64)
	return &model.ByteRange{Start: start, End: end}
}

// parseHexBytes decodes an optional "0x"-prefixed hex string to bytes.
func parseHexBytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	var out []byte
	for i := 0; i+1 < len(s); i += 2 {
		b, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			break
		}
		out = append(out, byte(b))
	}
	return out
}

var numberFormatRe = regexp.MustCompile(`\$Number%(\d+)d\$`)

// expandTemplate substitutes DASH/ISM SegmentTemplate placeholders.
func expandTemplate(template, repID string, number, t int) string {
	result := template
	result = strings.ReplaceAll(result, "$RepresentationID$", repID)
	result = strings.ReplaceAll(result, "$Number$", strconv.Itoa(number))
	result = strings.ReplaceAll(result, "$Time$", strconv.Itoa(t))
	result = numberFormatRe.ReplaceAllStringFunc(result, func(match string) string {
		width, _ := strconv.Atoi(numberFormatRe.FindStringSubmatch(match)[1])
		return fmt.Sprintf("%0*d", width, number)
	})
	return result
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
