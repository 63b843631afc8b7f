package fetch

import (
	"io"
	"mime"
	"net/url"
	"strings"
	"unicode/utf8"

	html2md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/mackee/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}

func isHTML(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func isJSON(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// isTextual reports whether a body of this type is worth reading as text.
// An empty content type is treated as text.
func isTextual(contentType string) bool {
	mt := mediaType(contentType)
	switch {
	case mt == "":
		return true
	case strings.HasPrefix(mt, "text/"):
		return true
	case isJSON(contentType), isHTML(contentType):
		return true
	case mt == "application/xml" || strings.HasSuffix(mt, "+xml"):
		return true
	}
	return false
}

// readText reads at most enough bytes for maxChars runes, decoding the
// declared charset to UTF-8. limited is true when the byte cap was reached.
func readText(body io.Reader, contentType string, maxChars int) (text string, limited bool, err error) {
	limit := int64(maxChars)*utf8.UTFMax + 1
	lr := &io.LimitedReader{R: body, N: limit}

	b, err := io.ReadAll(decoder(lr, contentType))
	if err != nil {
		return "", false, err
	}
	return strings.ToValidUTF8(string(b), "�"), lr.N <= 0, nil
}

// decoder converts declared non-UTF-8 charsets. HTML without a declared
// charset is sniffed; everything else is assumed to be UTF-8.
func decoder(r io.Reader, contentType string) io.Reader {
	_, params, _ := mime.ParseMediaType(contentType)
	cs := strings.ToLower(params["charset"])
	if cs == "utf-8" || cs == "utf8" || (cs == "" && !isHTML(contentType)) {
		return r
	}
	dr, err := charset.NewReader(r, contentType)
	if err != nil {
		return r
	}
	return dr
}

// truncateRunes cuts s to at most n characters
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

// markdown converts an HTML page to markdown, trying readability first
func markdown(pageURL string, body string) (string, error) {
	article, err := readability.Extract(body, readability.DefaultOptions())
	if err == nil && article.Root != nil {
		return readability.ToMarkdown(article.Root), nil
	}

	var host string
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Host
	}
	converter := html2md.NewConverter(host, true, &html2md.Options{})
	return converter.ConvertString(body)
}

// scanHTML returns the page title and x402:* meta tags (keyed without prefix)
func scanHTML(body string) (string, map[string]string) {
	var title string
	meta := map[string]string{}
	inTitle := false

	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title), meta
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = title == ""
			case "meta":
				var name, content string
				for _, a := range tok.Attr {
					switch strings.ToLower(a.Key) {
					case "name", "property":
						name = strings.ToLower(a.Val)
					case "content":
						content = a.Val
					}
				}
				if key, ok := strings.CutPrefix(name, "x402:"); ok && content != "" {
					if key == "facilitator_url" {
						key = "facilitator"
					}
					meta[key] = strings.TrimSpace(content)
				}
			}
		case html.TextToken:
			if inTitle {
				title += string(z.Text())
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.Data == "title" {
				inTitle = false
			}
		}
	}
}
