package services

import (
	"fmt"
	"html/template"
	"strings"
)

type emailMetaItem struct {
	Label string
	Value string
}

// emailContent is the body of one branded e-mail.
type emailContent struct {
	Subject    string
	Paragraphs []string
	Meta       []emailMetaItem
	ButtonText string
	ButtonURL  string
	Footer     string
}

var basicHTMLReplacer = strings.NewReplacer(
	"&lt;strong&gt;", "<strong>",
	"&lt;/strong&gt;", "</strong>",
)

const defaultAccentColor = "#2563eb"

// renderEmail wraps content in the shared HTML layout. accent colors the
// call-to-action button and must be a #rrggbb value.
func renderEmail(content emailContent, accent, logoURL string) string {
	if !isHexColor(accent) {
		accent = defaultAccentColor
	}

	var body strings.Builder
	for _, paragraph := range content.Paragraphs {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}
		escaped := template.HTMLEscapeString(trimmed)
		escaped = strings.ReplaceAll(strings.ReplaceAll(escaped, "\r\n", "\n"), "\r", "\n")
		escaped = strings.ReplaceAll(escaped, "\n", "<br />")
		escaped = basicHTMLReplacer.Replace(escaped)
		body.WriteString(`<p style="margin:0 0 18px 0;line-height:1.7;word-break:break-word;">`)
		body.WriteString(escaped)
		body.WriteString(`</p>`)
	}

	metaSection := renderEmailMeta(content.Meta)

	buttonSection := ""
	if strings.TrimSpace(content.ButtonText) != "" && strings.TrimSpace(content.ButtonURL) != "" {
		buttonSection = fmt.Sprintf(`<div style="text-align:center;margin:12px 0 24px 0;">
<a href="%s" style="display:inline-block;padding:12px 28px;background-color:%s;color:#ffffff;text-decoration:none;border-radius:999px;font-weight:600;">%s</a>
</div>`, template.HTMLEscapeString(content.ButtonURL), accent, template.HTMLEscapeString(content.ButtonText))
	}

	footerSection := ""
	if footer := strings.TrimSpace(content.Footer); footer != "" {
		footerSection = fmt.Sprintf(`<div style="color:#6b7280;font-size:13px;line-height:1.7;">%s</div>`, template.HTMLEscapeString(footer))
	}

	logoSection := ""
	if logo := strings.TrimSpace(logoURL); logo != "" {
		logoSection = fmt.Sprintf(`<div style="text-align:center;margin:0 auto 18px auto;"><img src="%s" alt="" style="display:inline-block;height:56px;width:auto;" /></div>`, template.HTMLEscapeString(logo))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
<div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px 24px 28px 24px;">
%s
<h1 style="margin:0;font-size:22px;font-weight:700;color:#111827;line-height:1.35;text-align:center;">%s</h1>
<div style="margin-top:20px;color:#1f2937;font-size:16px;line-height:1.75;">
%s
</div>
%s
%s
%s
</div>
</div>
</body>
</html>`, template.HTMLEscapeString(content.Subject), logoSection, template.HTMLEscapeString(content.Subject), body.String(), metaSection, buttonSection, footerSection)
}

func renderEmailMeta(meta []emailMetaItem) string {
	rows := make([]emailMetaItem, 0, len(meta))
	for _, item := range meta {
		label := strings.TrimSpace(item.Label)
		value := strings.TrimSpace(item.Value)
		if label == "" || value == "" {
			continue
		}
		rows = append(rows, emailMetaItem{Label: label, Value: value})
	}
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div style="margin:0 0 24px 0;">
<table role="presentation" cellpadding="0" cellspacing="0" width="100%" style="border:1px solid #e5e7eb;border-radius:12px;background-color:#f9fafb;">
<tbody>`)
	for i, row := range rows {
		border := "border-bottom:1px solid #e5e7eb;"
		if i == len(rows)-1 {
			border = ""
		}
		fmt.Fprintf(&b, `<tr>
<td style="padding:12px 16px;font-size:13px;color:#6b7280;width:38%%;%s">%s</td>
<td style="padding:12px 16px;font-size:15px;color:#111827;font-weight:600;%s">%s</td>
</tr>
`, border, template.HTMLEscapeString(row.Label), border, template.HTMLEscapeString(row.Value))
	}
	b.WriteString(`</tbody>
</table>
</div>`)
	return b.String()
}

func isHexColor(v string) bool {
	if len(v) != 7 || v[0] != '#' {
		return false
	}
	for _, r := range v[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
