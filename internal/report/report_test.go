package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/stats/category"
	"trade-simulator/internal/stats/ev"
)

func sampleDoc() Document {
	agg := category.New()
	agg.Record(model.Buy1, 200)
	agg.Record(model.Buy1, -50)
	agg.Record(model.Sell1, 0)

	open := time.Date(2024, 3, 4, 9, 35, 0, 0, time.UTC)
	return Document{
		Title: "回测报告",
		Stats: agg.Report([]model.Category{model.Buy1, model.Sell1}),
		Expectancy: []ev.Row{
			{Category: model.Buy1, Count: 2, WinRate: 50, EV: 0.75, PRequired: 20, RateP50: 1.234567, HoldP50: 26 * time.Hour},
		},
		Closed: []*model.Position{{
			Instrument: "600000",
			Category:   model.Buy1,
			Direction:  model.DirectionLong,
			Price:      10,
			Amount:     1000,
			OpenTime:   open,
			CloseTime:  open.Add(24 * time.Hour),
			ProfitRate: 2,
			OpenMsg:    "一买",
			CloseMsg:   "止盈|离场",
		}},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"text": FormatText, "MD": FormatMarkdown, "markdown": FormatMarkdown, "csv": FormatCSV, "html": FormatHTML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestStatsTable(t *testing.T) {
	tbl := StatsTable(sampleDoc().Stats)
	assert.Equal(t, statsHeaders, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"一类买点", "1", "1", "50%", "200", "50", "150", "25", "200", "50", "4"}, tbl.Rows[0])
	// 收益为 0 计入亏损
	assert.Equal(t, "一类卖点", tbl.Rows[1][0])
	assert.Equal(t, "0", tbl.Rows[1][1])
	assert.Equal(t, "1", tbl.Rows[1][2])
}

func TestDocument_TablesSkipsEmpty(t *testing.T) {
	doc := Document{Stats: sampleDoc().Stats}
	tables := doc.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, "买卖点统计", tables[0].Caption)

	assert.Len(t, sampleDoc().Tables(), 3)
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 3, displayWidth("abc"))
	assert.Equal(t, 8, displayWidth("一类买点"))
	assert.Equal(t, 5, displayWidth("胜率%"))
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, sampleDoc()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "回测报告\n"))
	assert.Contains(t, out, "| 一类买点 |")
	assert.Contains(t, out, "1.1d")
	assert.Contains(t, out, "1.23%")

	// 同一张表的每一行显示宽度一致
	var width int
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "平仓记录") {
			break
		}
		if !strings.HasPrefix(line, "|") && !strings.HasPrefix(line, "+") {
			width = 0
			continue
		}
		if width == 0 {
			width = displayWidth(line)
			continue
		}
		assert.Equal(t, width, displayWidth(line), line)
	}
}

func TestRender_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatMarkdown, sampleDoc()))
	out := buf.String()

	assert.Contains(t, out, "# 回测报告\n")
	assert.Contains(t, out, "## 买卖点统计\n")
	assert.Contains(t, out, "| 买卖点 | 成功 | 失败 | 胜率 |")
	assert.Contains(t, out, `止盈\|离场`)
}

func TestRender_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatCSV, sampleDoc()))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"# 买卖点统计"}, records[0])
	assert.Equal(t, statsHeaders, records[1])
	assert.Equal(t, "一类买点", records[2][0])
	// 空行分隔符被读取端跳过
	assert.Equal(t, []string{"# 滚动期望"}, records[4])
}

func TestRender_HTML(t *testing.T) {
	doc := sampleDoc()
	doc.Closed[0].OpenMsg = "<script>"
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatHTML, doc))
	out := buf.String()

	assert.Contains(t, out, "<h1>回测报告</h1>")
	assert.Contains(t, out, "<th>盈亏比</th>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "<td><script>")
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, Format("pdf"), sampleDoc()))
}
