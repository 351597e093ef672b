package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strings"

	"golang.org/x/text/width"
)

// Format 报表格式
type Format string

const (
	// FormatText 文本表格（等宽终端）
	FormatText Format = "text"
	// FormatMarkdown Markdown 表格
	FormatMarkdown Format = "markdown"
	// FormatCSV CSV，多个表之间以空行分隔
	FormatCSV Format = "csv"
	// FormatHTML HTML 页面
	FormatHTML Format = "html"
)

// ParseFormat 解析报表格式
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatMarkdown, FormatCSV, FormatHTML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("未知报表格式: %q", s)
	}
}

// Render 按格式渲染文档
func Render(w io.Writer, format Format, doc Document) error {
	tables := doc.Tables()
	switch format {
	case FormatText:
		return renderText(w, doc.Title, tables)
	case FormatMarkdown:
		return renderMarkdown(w, doc.Title, tables)
	case FormatCSV:
		return renderCSV(w, tables)
	case FormatHTML:
		return renderHTML(w, doc.Title, tables)
	default:
		return fmt.Errorf("未知报表格式: %q", format)
	}
}

// displayWidth 终端显示宽度，全角与宽字符按 2 列计算
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func pad(s string, w int) string {
	return s + strings.Repeat(" ", w-displayWidth(s))
}

func renderText(w io.Writer, title string, tables []Table) error {
	bw := bufio.NewWriter(w)
	if title != "" {
		fmt.Fprintln(bw, title)
	}
	for i, t := range tables {
		if i > 0 || title != "" {
			fmt.Fprintln(bw)
		}
		widths := make([]int, len(t.Headers))
		for j, h := range t.Headers {
			widths[j] = displayWidth(h)
		}
		for _, row := range t.Rows {
			for j, cell := range row {
				if cw := displayWidth(cell); cw > widths[j] {
					widths[j] = cw
				}
			}
		}

		sep := make([]string, len(widths))
		for j, cw := range widths {
			sep[j] = strings.Repeat("-", cw+2)
		}
		border := "+" + strings.Join(sep, "+") + "+"
		line := func(cells []string) {
			parts := make([]string, len(cells))
			for j, c := range cells {
				parts[j] = " " + pad(c, widths[j]) + " "
			}
			fmt.Fprintln(bw, "|"+strings.Join(parts, "|")+"|")
		}

		fmt.Fprintln(bw, t.Caption)
		fmt.Fprintln(bw, border)
		line(t.Headers)
		fmt.Fprintln(bw, border)
		for _, row := range t.Rows {
			line(row)
		}
		fmt.Fprintln(bw, border)
	}
	return bw.Flush()
}

// mdEscape 转义单元格中的竖线与换行
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func renderMarkdown(w io.Writer, title string, tables []Table) error {
	bw := bufio.NewWriter(w)
	if title != "" {
		fmt.Fprintf(bw, "# %s\n\n", title)
	}
	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "## %s\n\n", t.Caption)
		fmt.Fprintln(bw, "| "+strings.Join(t.Headers, " | ")+" |")
		aligns := make([]string, len(t.Headers))
		for j := range aligns {
			aligns[j] = "---"
		}
		fmt.Fprintln(bw, "| "+strings.Join(aligns, " | ")+" |")
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for j, c := range row {
				cells[j] = mdEscape(c)
			}
			fmt.Fprintln(bw, "| "+strings.Join(cells, " | ")+" |")
		}
	}
	return bw.Flush()
}

func renderCSV(w io.Writer, tables []Table) error {
	cw := csv.NewWriter(w)
	// 各表列数不同
	for i, t := range tables {
		if i > 0 {
			if err := cw.Write([]string{""}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{"# " + t.Caption}); err != nil {
			return err
		}
		if err := cw.Write(t.Headers); err != nil {
			return err
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
table { border-collapse: collapse; margin-bottom: 24px; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
th { background: #f4f4f4; }
</style>
</head>
<body>
{{- if .Title}}
<h1>{{.Title}}</h1>
{{- end}}
{{- range .Tables}}
<h2>{{.Caption}}</h2>
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
{{- end}}
</body>
</html>
`))

func renderHTML(w io.Writer, title string, tables []Table) error {
	return htmlTemplate.Execute(w, struct {
		Title  string
		Tables []Table
	}{title, tables})
}
