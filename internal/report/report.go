// Package report renders a batch summary as an XLSX workbook: one
// overview sheet plus a detail sheet per bucket that holds invoices.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/organize"
)

// FileName is the fixed name of the workbook inside an output directory.
const FileName = "报销统计.xlsx"

const (
	summarySheet = "汇总"
	maxSheetName = 31
	amountFormat = "#,##0.00"
	headerColor  = "4472C4"
	pendingNote  = "需人工确认消费日期"
)

var (
	summaryHeaders = []string{"类别", "发票数量", "金额（元）", "备注"}
	detailHeaders  = []string{"序号", "日期", "商家/平台", "金额（元）", "发票号码", "描述", "文件路径"}
	detailWidths   = []float64{6, 12, 20, 12, 20, 25, 40}

	sheetNameReplacer = strings.NewReplacer(":", "_", "/", "_", `\`, "_", "?", "_", "*", "_", "[", "_", "]", "_")
)

// SheetName makes a bucket name safe for use as a worksheet name.
func SheetName(name string) string {
	name = sheetNameReplacer.Replace(name)
	r := []rune(name)
	if len(r) > maxSheetName {
		r = r[:maxSheetName]
	}
	return string(r)
}

type styles struct {
	title, header, cell, center, amount, bold, boldAmount, wrap int
}

func newStyles(f *excelize.File) (styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	right := &excelize.Alignment{Horizontal: "right", Vertical: "center"}
	numFmt := amountFormat

	defs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 16}, Alignment: center},
		{
			Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
			Border:    border,
			Alignment: center,
		},
		{Border: border},
		{Border: border, Alignment: center},
		{Border: border, Alignment: right, CustomNumFmt: &numFmt},
		{Font: &excelize.Font{Bold: true, Size: 12}, Border: border},
		{Font: &excelize.Font{Bold: true, Size: 12}, Border: border, Alignment: right, CustomNumFmt: &numFmt},
		{Border: border, Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true}},
	}
	ids := make([]int, len(defs))
	for i, d := range defs {
		id, err := f.NewStyle(d)
		if err != nil {
			return styles{}, fmt.Errorf("creating style: %w", err)
		}
		ids[i] = id
	}
	return styles{
		title: ids[0], header: ids[1], cell: ids[2], center: ids[3],
		amount: ids[4], bold: ids[5], boldAmount: ids[6], wrap: ids[7],
	}, nil
}

// Build renders the workbook. Only formal invoices appear in detail
// sheets; buckets without invoices get no sheet and no overview row.
func Build(summary organize.Summary, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming summary sheet: %w", err)
	}

	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	type detail struct {
		line  organize.Line
		sheet string
	}
	var details []detail
	for _, line := range summary.Lines {
		if line.Count == 0 {
			continue
		}
		sheet, err := writeDetail(f, st, line)
		if err != nil {
			f.Close()
			return nil, err
		}
		details = append(details, detail{line: line, sheet: sheet})
	}

	if err := f.MergeCell(summarySheet, "A1", "D1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("merging title: %w", err)
	}
	_ = f.SetCellValue(summarySheet, "A1", "报销汇总表 - "+now.Format(time.DateOnly))
	_ = f.SetCellStyle(summarySheet, "A1", "D1", st.title)
	writeHeaders(f, summarySheet, 3, summaryHeaders, st.header)

	row := 4
	var countCells, amountCells []string
	for _, d := range details {
		lastData := d.line.Count + 1
		set := cellWriter(f, summarySheet, row)

		set(1, string(d.line.Bucket), st.cell)
		_ = f.SetCellFormula(summarySheet, cell(2, row), fmt.Sprintf("COUNTA('%s'!A2:A%d)", d.sheet, lastData))
		_ = f.SetCellStyle(summarySheet, cell(2, row), cell(2, row), st.center)
		_ = f.SetCellFormula(summarySheet, cell(3, row), fmt.Sprintf("'%s'!D%d", d.sheet, lastData+1))
		_ = f.SetCellStyle(summarySheet, cell(3, row), cell(3, row), st.amount)
		note := ""
		if d.line.Bucket == expense.BucketPending {
			note = pendingNote
		}
		set(4, note, st.cell)

		countCells = append(countCells, cell(2, row))
		amountCells = append(amountCells, cell(3, row))
		row++
	}

	set := cellWriter(f, summarySheet, row)
	set(1, "合计", st.bold)
	if len(countCells) > 0 {
		_ = f.SetCellFormula(summarySheet, cell(2, row), "SUM("+strings.Join(countCells, ",")+")")
		_ = f.SetCellFormula(summarySheet, cell(3, row), "SUM("+strings.Join(amountCells, ",")+")")
		_ = f.SetCellStyle(summarySheet, cell(2, row), cell(2, row), st.bold)
		_ = f.SetCellStyle(summarySheet, cell(3, row), cell(3, row), st.boldAmount)
	} else {
		set(2, 0, st.bold)
		set(3, 0, st.boldAmount)
	}
	set(4, "", st.cell)

	_ = f.SetColWidth(summarySheet, "A", "A", 15)
	_ = f.SetColWidth(summarySheet, "B", "B", 12)
	_ = f.SetColWidth(summarySheet, "C", "C", 15)
	_ = f.SetColWidth(summarySheet, "D", "D", 20)
	f.SetActiveSheet(0)

	return f, nil
}

func writeDetail(f *excelize.File, st styles, line organize.Line) (string, error) {
	sheet := SheetName(string(line.Bucket))
	if _, err := f.NewSheet(sheet); err != nil {
		return "", fmt.Errorf("creating sheet %s: %w", sheet, err)
	}
	writeHeaders(f, sheet, 1, detailHeaders, st.header)

	invoices := append([]*expense.Record(nil), line.Invoices...)
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].Date < invoices[j].Date
	})

	row := 2
	for i, r := range invoices {
		set := cellWriter(f, sheet, row)
		set(1, i+1, st.center)
		set(2, r.Date, st.center)
		set(3, r.Label(), st.cell)
		set(4, r.Amount.InexactFloat64(), st.amount)
		set(5, r.InvoiceNumber, st.cell)
		set(6, r.Description, st.wrap)
		set(7, r.FilePath, st.cell)
		row++
	}

	set := cellWriter(f, sheet, row)
	set(1, "", st.cell)
	set(2, "", st.cell)
	set(3, "合计", st.bold)
	_ = f.SetCellFormula(sheet, cell(4, row), fmt.Sprintf("SUM(D2:D%d)", row-1))
	_ = f.SetCellStyle(sheet, cell(4, row), cell(4, row), st.boldAmount)
	for col := 5; col <= 7; col++ {
		set(col, "", st.cell)
	}

	for i, w := range detailWidths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, name, name, w)
	}
	_ = f.SetColVisible(sheet, "G", false)

	return sheet, nil
}

func writeHeaders(f *excelize.File, sheet string, row int, headers []string, style int) {
	set := cellWriter(f, sheet, row)
	for i, h := range headers {
		set(i+1, h, style)
	}
}

func cellWriter(f *excelize.File, sheet string, row int) func(col int, v any, style int) {
	return func(col int, v any, style int) {
		c := cell(col, row)
		_ = f.SetCellValue(sheet, c, v)
		_ = f.SetCellStyle(sheet, c, c, style)
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// Write saves the workbook to path.
func Write(path string, summary organize.Summary, now time.Time) error {
	f, err := Build(summary, now)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// Bytes renders the workbook into memory.
func Bytes(summary organize.Summary, now time.Time) ([]byte, error) {
	f, err := Build(summary, now)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
