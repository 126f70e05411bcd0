// Package mathml converts TeX equations embedded in exercise markup to MathML.
package mathml

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/therealmarv/cnx-epub/core/cache"
	"github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/xml"
	"github.com/therealmarv/cnx-epub/internal/logging"
)

// MathAttr marks an element whose TeX source should be converted.
const MathAttr = "data-math"

// Converter turns TeX into MathML markup.
type Converter interface {
	Convert(ctx context.Context, tex string) (string, error)
}

// Client calls an equation conversion service. The service takes a form
// POST and answers with a list of rendered components.
type Client struct {
	URL    string
	HTTP   *http.Client
	Loader *cache.Loader
}

// NewClient creates a client for the service at serviceURL.
func NewClient(serviceURL string, httpClient *http.Client, loader *cache.Loader) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{URL: serviceURL, HTTP: httpClient, Loader: loader}
}

type equationResponse struct {
	Components []struct {
		Format string `json:"format"`
		Source string `json:"source"`
	} `json:"components"`
}

// validationResponse is the body of a 400 answer.
type validationResponse struct {
	Error             string `json:"error"`
	Summary           string `json:"summary"`
	InvalidAttributes map[string][]struct {
		Rule    string `json:"rule"`
		Message string `json:"message"`
	} `json:"invalidAttributes"`
}

func (v *validationResponse) diagnostic() string {
	var parts []string
	if v.Summary != "" {
		parts = append(parts, v.Summary)
	}
	names := make([]string, 0, len(v.InvalidAttributes))
	for name := range v.InvalidAttributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, a := range v.InvalidAttributes[name] {
			parts = append(parts, name+": "+a.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// Convert returns the MathML for tex. Successful conversions are cached.
func (c *Client) Convert(ctx context.Context, tex string) (string, error) {
	data, err := c.Loader.Load(ctx, cache.EquationKey(tex), func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, tex)
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) fetch(ctx context.Context, tex string) ([]byte, error) {
	form := url.Values{
		"math":     {tex},
		"mathType": {"TeX"},
		"mml":      {"true"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &errors.TransportError{Service: "mathml", URL: c.URL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &errors.TransportError{Service: "mathml", URL: c.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.TransportError{Service: "mathml", URL: c.URL, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var eq equationResponse
		if err := json.Unmarshal(body, &eq); err != nil {
			return nil, &errors.ConversionError{Source: tex, Diagnostic: string(body), Err: err}
		}
		for _, component := range eq.Components {
			if component.Format == "mml" {
				return []byte(component.Source), nil
			}
		}
		return nil, &errors.ConversionError{Source: tex, Diagnostic: "no mml component in " + string(body)}
	case http.StatusBadRequest:
		var v validationResponse
		if json.Unmarshal(body, &v) == nil {
			if d := v.diagnostic(); d != "" {
				return nil, &errors.ConversionError{Source: tex, Diagnostic: d}
			}
		}
		return nil, &errors.ConversionError{Source: tex, Diagnostic: string(body)}
	default:
		return nil, &errors.TransportError{Service: "mathml", URL: c.URL, StatusCode: resp.StatusCode}
	}
}

// ReplaceMath converts every element under root carrying a data-math
// attribute and puts the MathML in its place. Elements with empty TeX are
// left alone. tag names the exercise in log messages. The first failure is
// logged and returned as an *errors.ConversionError or transport error.
func ReplaceMath(ctx context.Context, conv Converter, root *xmlquery.Node, tag string) error {
	var targets []*xmlquery.Node
	for _, e := range xml.Elements(root) {
		if _, ok := xml.Attr(e, MathAttr); ok {
			targets = append(targets, e)
		}
	}

	for _, e := range targets {
		tex := Source(e)
		if strings.TrimSpace(tex) == "" {
			continue
		}
		math, err := convertElement(ctx, conv, e, tex)
		if err != nil {
			var diagnostic string
			var cerr *errors.ConversionError
			if errors.As(err, &cerr) {
				diagnostic = cerr.Diagnostic
			}
			logging.ConversionError(ctx, tag, tex, diagnostic, err)
			return err
		}
		xml.Replace(e, math)
	}
	return nil
}

// Source returns the TeX of a math element: the data-math attribute, or
// the element text when the attribute is empty.
func Source(e *xmlquery.Node) string {
	if tex := xml.AttrValue(e, MathAttr); tex != "" {
		return tex
	}
	return xml.Text(e)
}

func convertElement(ctx context.Context, conv Converter, e *xmlquery.Node, tex string) (*xmlquery.Node, error) {
	markup, err := conv.Convert(ctx, tex)
	if err != nil {
		return nil, err
	}
	doc, err := xml.ParseString(markup)
	if err != nil {
		return nil, &errors.ConversionError{Source: tex, Diagnostic: markup, Err: err}
	}
	math := doc.Root()
	if math.Data != "math" || (math.NamespaceURI != "" && math.NamespaceURI != xml.MathMLNamespace) {
		return nil, &errors.ConversionError{
			Source:     tex,
			Diagnostic: markup,
			Err:        fmt.Errorf("root element %s is not MathML", math.Data),
		}
	}
	xml.Remove(math)
	// Some converters omit the namespace declaration.
	for _, el := range xml.Elements(math) {
		if el.NamespaceURI == "" {
			el.NamespaceURI = xml.MathMLNamespace
		}
	}
	xml.Unify(math)
	switch {
	case xml.IsElement(e, "span"):
		xml.SetAttr(math, "display", "inline")
	case xml.IsElement(e, "div"):
		xml.SetAttr(math, "display", "block")
	}
	return math, nil
}
