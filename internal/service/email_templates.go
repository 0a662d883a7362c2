package service

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/ratethiscrow/crowapi/internal/markdown"
)

const (
	templateVerify     = "verify.md"
	templateSubscribed = "subscribed.md"
)

//go:embed emails/*.md
var emailFS embed.FS

var emailTemplates = template.Must(template.New("emails").Funcs(template.FuncMap{
	"md": escapeMarkdown,
}).ParseFS(emailFS, "emails/*.md"))

// markdownPunct is every ASCII punctuation character; CommonMark allows a
// backslash escape before each of them.
const markdownPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// escapeMarkdown renders s as literal text, never as links, emphasis or
// autolinks.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(markdownPunct, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

type renderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

type verifyEmailData struct {
	AppName   string
	Type      string
	VerifyURL string
	ExpiresIn string
}

type subscribedEmailData struct {
	AppName        string
	Type           string
	UnsubscribeURL string
}

// renderEmail fills a markdown template and converts it to HTML. The
// subject comes from the frontmatter; the plain markdown body is the text part.
func renderEmail(parser *markdown.Parser, name string, data any) (*renderedEmail, error) {
	var source bytes.Buffer
	err := emailTemplates.ExecuteTemplate(&source, name, data)
	if err != nil {
		return nil, fmt.Errorf("execute email template %s: %w", name, err)
	}

	html, meta, err := parser.ParseWithFrontmatter(source.Bytes())
	if err != nil {
		return nil, fmt.Errorf("render email template %s: %w", name, err)
	}

	subject, _ := meta["subject"].(string)
	if subject == "" {
		return nil, fmt.Errorf("email template %s has no subject", name)
	}

	return &renderedEmail{
		Subject: subject,
		HTML:    string(html),
		Text:    string(markdown.Body(source.Bytes())),
	}, nil
}
