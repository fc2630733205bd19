// Package index implements a client for PEP 503/691 style "simple" package
// repositories. Project pages and the project list are requested in the JSON
// flavour first (PEP 691) and fall back to parsing the legacy HTML listing.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// jsonContentType is the PEP 691 media type for the simple API.
const jsonContentType = "application/vnd.pypi.simple.v1+json"

// Repository exposes the read operations of a simple package repository.
// Implementations must return ErrNotFound for unknown projects/resources.
type Repository interface {
	GetProjectPage(ctx context.Context, name string) (*ProjectDetail, error)
	GetProjectList(ctx context.Context) (*ProjectList, error)
	GetResource(ctx context.Context, project, resourceName string) ([]byte, error)
}

// Client is an HTTP Repository against a simple-repository base URL
// (for example https://pypi.org/simple/).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the repository rooted at baseURL. A nil
// httpClient falls back to a client with a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", jsonContentType+", text/html;q=0.1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		closeQuietly(resp.Body)
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode >= 400:
		closeQuietly(resp.Body)
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func closeQuietly(rc io.Closer) {
	_ = rc.Close()
}

// GetProjectPage fetches the project detail page for name.
func (c *Client) GetProjectPage(ctx context.Context, name string) (*ProjectDetail, error) {
	resp, err := c.get(ctx, c.baseURL+url.PathEscape(name)+"/")
	if err != nil {
		return nil, err
	}
	defer closeQuietly(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading project page for %s: %w", name, err)
	}

	if isJSONResponse(resp) {
		return parseProjectDetailJSON(body)
	}
	return parseProjectDetailHTML(name, body)
}

// GetProjectList fetches the repository-wide project listing.
func (c *Client) GetProjectList(ctx context.Context) (*ProjectList, error) {
	resp, err := c.get(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading project list: %w", err)
	}

	if isJSONResponse(resp) {
		return parseProjectListJSON(body)
	}
	return parseProjectListHTML(body)
}

// GetResource fetches a project resource (such as a PEP 658 metadata file)
// by name.
func (c *Client) GetResource(ctx context.Context, project, resourceName string) ([]byte, error) {
	u := c.baseURL + url.PathEscape(project) + "/" + url.PathEscape(resourceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching resource %s: %w", resourceName, err)
	}
	defer closeQuietly(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("resource %s of %s: %w", resourceName, project, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching resource %s: unexpected status %d", resourceName, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func isJSONResponse(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return strings.HasPrefix(ct, jsonContentType) || strings.HasPrefix(ct, "application/json")
}

// JSON wire formats (PEP 691).

type jsonProjectDetail struct {
	Name     string     `json:"name"`
	Files    []jsonFile `json:"files"`
	Versions []string   `json:"versions"`
}

type jsonFile struct {
	Filename         string          `json:"filename"`
	URL              string          `json:"url"`
	Size             *int64          `json:"size"`
	UploadTime       *string         `json:"upload-time"`
	Yanked           json.RawMessage `json:"yanked"`
	DistInfoMetadata json.RawMessage `json:"core-metadata"`
}

type jsonProjectList struct {
	Projects []struct {
		Name string `json:"name"`
	} `json:"projects"`
}

func parseProjectDetailJSON(body []byte) (*ProjectDetail, error) {
	var raw jsonProjectDetail
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding project detail: %w", err)
	}

	detail := &ProjectDetail{
		Name:     raw.Name,
		Versions: raw.Versions,
	}
	for _, jf := range raw.Files {
		f := File{Filename: jf.Filename, URL: jf.URL}
		if jf.Size != nil {
			f.Size = *jf.Size
			f.HasSize = true
		}
		if jf.UploadTime != nil {
			if t, err := parseUploadTime(*jf.UploadTime); err == nil {
				f.UploadTime = &t
			}
		}
		f.Yanked, f.YankedReason = parseYanked(jf.Yanked)
		f.DistInfoMetadata = parseBoolish(jf.DistInfoMetadata)
		detail.Files = append(detail.Files, f)
	}

	// Keep index-private extension fields (underscore-prefixed) verbatim.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err == nil {
		for k, v := range top {
			if strings.HasPrefix(k, "_") {
				if detail.PrivateMetadata == nil {
					detail.PrivateMetadata = make(map[string]json.RawMessage)
				}
				detail.PrivateMetadata[k] = v
			}
		}
	}
	return detail, nil
}

func parseUploadTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999Z0700", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised upload time %q", s)
}

// parseYanked handles the bool-or-string yanked field from PEP 592.
func parseYanked(raw json.RawMessage) (bool, string) {
	if len(raw) == 0 {
		return false, ""
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return true, s
	}
	return false, ""
}

// parseBoolish handles fields that may be a bool or a hash map (PEP 658's
// core-metadata can be {"sha256": ...}).
func parseBoolish(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return len(m) > 0
	}
	return false
}

func parseProjectListJSON(body []byte) (*ProjectList, error) {
	var raw jsonProjectList
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding project list: %w", err)
	}
	list := &ProjectList{}
	for _, p := range raw.Projects {
		list.Projects = append(list.Projects, ProjectListEntry{
			Name:           p.Name,
			NormalizedName: NormalizeName(p.Name),
		})
	}
	return list, nil
}

// HTML fallbacks (PEP 503).

func parseProjectDetailHTML(name string, body []byte) (*ProjectDetail, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parsing project page HTML: %w", err)
	}
	detail := &ProjectDetail{Name: name}
	for _, a := range findAnchors(doc) {
		href := attrValue(a, "href")
		if href == "" {
			continue
		}
		f := File{
			Filename: anchorText(a),
			URL:      stripFragment(href),
		}
		if reason, ok := anchorYanked(a); ok {
			f.Yanked = true
			f.YankedReason = reason
		}
		if v := attrValue(a, "data-dist-info-metadata"); v != "" {
			f.DistInfoMetadata = true
		}
		if v := attrValue(a, "data-core-metadata"); v != "" {
			f.DistInfoMetadata = true
		}
		detail.Files = append(detail.Files, f)
	}
	return detail, nil
}

func parseProjectListHTML(body []byte) (*ProjectList, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parsing project list HTML: %w", err)
	}
	list := &ProjectList{}
	for _, a := range findAnchors(doc) {
		name := anchorText(a)
		if name == "" {
			continue
		}
		list.Projects = append(list.Projects, ProjectListEntry{
			Name:           name,
			NormalizedName: NormalizeName(name),
		})
	}
	return list, nil
}

func findAnchors(n *html.Node) []*html.Node {
	var anchors []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			anchors = append(anchors, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return anchors
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func anchorYanked(n *html.Node) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == "data-yanked" {
			return attr.Val, true
		}
	}
	return "", false
}

func anchorText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
