package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// HTML element name constants for form field detection.
const (
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
)

// Parser extracts links, scripts and forms from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Links contains all discovered URLs (href attributes).
	Links []string

	// InternalLinks are links on the same host as the page.
	InternalLinks []string

	// ExternalLinks are links to other hosts.
	ExternalLinks []string

	// Forms contains information about HTML forms.
	Forms []FormInfo

	// Scripts contains script sources.
	Scripts []string

	// Comments contains HTML comments.
	Comments []string
}

// FormInfo contains information about an HTML form.
type FormInfo struct {
	// Action is the form action URL.
	Action string

	// Method is the HTTP method (GET, POST).
	Method string

	// Fields contains form field names and types.
	Fields []FormField
}

// FormField represents a form input field.
type FormField struct {
	Name  string
	Type  string
	Value string
}

// QueryURL returns the action URL with every named field as an empty query
// parameter, which is how a GET submission of the form would look.
func (f FormInfo) QueryURL() string {
	u, err := url.Parse(f.Action)
	if err != nil || len(f.Fields) == 0 {
		return f.Action
	}
	q := u.Query()
	for _, field := range f.Fields {
		if field.Type == "submit" || q.Has(field.Name) {
			continue
		}
		q.Set(field.Name, field.Value)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts all relevant information.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:         make([]string, 0),
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
		Forms:         make([]FormInfo, 0),
		Scripts:       make([]string, 0),
		Comments:      make([]string, 0),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			p.processElement(n, result)
		case html.CommentNode:
			result.Comments = append(result.Comments, strings.TrimSpace(n.Data))
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		if href := getAttr(n, "href"); href != "" {
			resolved := p.resolveURL(href)
			if resolved != "" {
				result.Links = append(result.Links, resolved)
				p.classifyLink(resolved, result)
			}
		}

	case "form":
		action := getAttr(n, "action")
		if action == "" {
			action = p.baseURL.String()
		}
		form := FormInfo{
			Action: p.resolveURL(action),
			Method: strings.ToUpper(getAttr(n, "method")),
			Fields: make([]FormField, 0),
		}
		if form.Method == "" {
			form.Method = "GET"
		}
		p.extractFormFields(n, &form)
		result.Forms = append(result.Forms, form)

	case "script":
		if src := getAttr(n, "src"); src != "" {
			if resolved := p.resolveURL(src); resolved != "" {
				result.Scripts = append(result.Scripts, resolved)
			}
		}
	}
}

// extractFormFields recursively extracts form fields from a form element.
func (p *Parser) extractFormFields(n *html.Node, form *FormInfo) {
	if n.Type == html.ElementNode && (n.Data == htmlElementInput || n.Data == htmlElementSelect || n.Data == htmlElementTextarea) {
		field := FormField{
			Name:  getAttr(n, "name"),
			Type:  getAttr(n, "type"),
			Value: getAttr(n, "value"),
		}
		if field.Type == "" {
			switch n.Data {
			case htmlElementTextarea:
				field.Type = htmlElementTextarea
			case htmlElementSelect:
				field.Type = htmlElementSelect
			default:
				field.Type = "text"
			}
		}
		if field.Name != "" {
			form.Fields = append(form.Fields, field)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.extractFormFields(c, form)
	}
}

// resolveURL resolves a relative URL against the base URL. Non-navigable
// references (javascript:, mailto:, bare fragments) resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(strings.ToLower(href), prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	resolved.Fragment = ""
	return resolved.String()
}

// classifyLink categorizes a link as internal or external.
func (p *Parser) classifyLink(link string, result *ParseResult) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}
	if u.Host == "" || strings.EqualFold(u.Hostname(), p.baseURL.Hostname()) {
		result.InternalLinks = append(result.InternalLinks, link)
		return
	}
	result.ExternalLinks = append(result.ExternalLinks, link)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
