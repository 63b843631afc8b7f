package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/ka2n/x402search/api"
	"github.com/ka2n/x402search/api/ledger"
	"github.com/morikuni/failure/v2"
)

const snippetRunes = 280

// section is one block of the report. URL is empty for the header and footer.
type section struct {
	URL      string
	Markdown string
}

// buildReport turns a response into markdown sections: a header, one per result and a usage footer
func buildReport(resp *api.Response) []section {
	sections := make([]section, 0, len(resp.Results)+2)

	header := fmt.Sprintf("# Results for %q\n\n%d results", resp.Query, len(resp.Results))
	if paid := resp.PaidCount(); paid > 0 {
		header += fmt.Sprintf(", %d licensed through the ledger", paid)
	}
	sections = append(sections, section{Markdown: header + "\n"})

	for i, it := range resp.Results {
		sections = append(sections, section{URL: it.URL, Markdown: itemMarkdown(i+1, it)})
	}

	if u := resp.UsageLog; u != nil {
		var b strings.Builder
		b.WriteString("---\n\n")
		if u.OK {
			fmt.Fprintf(&b, "Usage reported: %d hits (gen_id `%s`)\n", u.Hits, u.GenerationID)
		} else {
			fmt.Fprintf(&b, "Usage **not** reported: %s (gen_id `%s`, %d hits)\n", u.Error, u.GenerationID, u.Hits)
		}
		sections = append(sections, section{Markdown: b.String()})
	}
	return sections
}

func itemMarkdown(n int, it api.Item) string {
	var b strings.Builder

	title := it.Title
	if title == "" {
		title = it.URL
	}
	fmt.Fprintf(&b, "## %d. %s\n\n<%s>\n\n", n, title, it.URL)
	if it.Author != "" || it.PublishedDate != "" {
		fmt.Fprintf(&b, "_%s_\n\n", strings.TrimSpace(it.Author+" "+it.PublishedDate))
	}

	fmt.Fprintf(&b, "- License: %s\n", licenseLine(it.License))
	if f := it.Fetched; f != nil {
		line := fmt.Sprintf("status %d", f.Status)
		if f.Tokens > 0 {
			line += fmt.Sprintf(", %d tokens", f.Tokens)
		}
		if f.Truncated {
			line += ", truncated"
		}
		if g := f.AcquireOutcome; g != nil {
			line += fmt.Sprintf(", licensed for %s %s", strconv.FormatFloat(g.Cost, 'f', -1, 64), g.Currency)
		} else if f.PaymentRequired {
			line += ", payment required"
		}
		fmt.Fprintf(&b, "- Fetched: %s\n", line)
		if f.Error != "" {
			fmt.Fprintf(&b, "- Error: %s\n", f.Error)
		}
	}

	text := it.Text
	if it.Fetched != nil && it.Fetched.ContentText != "" {
		text = it.Fetched.ContentText
	}
	if snippet := snippet(text, snippetRunes); snippet != "" {
		fmt.Fprintf(&b, "\n> %s\n", snippet)
	}
	return b.String()
}

func licenseLine(v ledger.Verdict) string {
	line := string(v.Action)
	var details []string
	if v.Price != nil {
		details = append(details, "price "+strconv.FormatFloat(*v.Price, 'f', -1, 64)+" per 1k tokens")
	}
	if v.PayTo != "" {
		details = append(details, "pay to "+v.PayTo)
	}
	if v.Error != "" {
		details = append(details, v.Error)
	}
	if len(details) > 0 {
		line += " (" + strings.Join(details, ", ") + ")"
	}
	return line
}

// snippet flattens whitespace and cuts text to n runes
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "…"
}

// renderSections renders each section with glamour
func renderSections(sections []section) ([]string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, failure.Wrap(err)
	}

	out := make([]string, 0, len(sections))
	for _, s := range sections {
		r, err := renderer.Render(s.Markdown)
		if err != nil {
			return nil, failure.Wrap(err)
		}
		out = append(out, strings.TrimRight(r, "\n"))
	}
	return out, nil
}
