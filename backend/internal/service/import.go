package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"upms-teamup/backend/internal/dto"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// ────────────────────── 表格导入 ──────────────────────

// maxImportRows 单个文件的数据行上限（不含表头）
const maxImportRows = 5000

// table 解析后的导入表格：header 已转为小写，rows 保留原始行号
type table struct {
	header map[string]int
	rows   []tableRow
}

type tableRow struct {
	line   int
	fields []string
}

// get 取列值；列缺失或该行字段不足时返回空串
func (t *table) get(r tableRow, col string) string {
	idx, ok := t.header[col]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

// readTable 按扩展名解析 .csv / .xlsx，首行为表头，要求包含 required 中的全部列
func readTable(r io.Reader, filename string, required []string) (*table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(path.Ext(filename)) {
	case ".xlsx":
		records, err = readXLSX(r)
	case ".csv":
		records, err = readCSV(r)
	default:
		return nil, pkgerrors.Validation("仅支持 .csv 或 .xlsx 文件")
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, pkgerrors.Validation("文件为空")
	}

	t := &table{header: make(map[string]int, len(records[0]))}
	for i, h := range records[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if key == "" {
			continue
		}
		if _, dup := t.header[key]; !dup {
			t.header[key] = i
		}
	}
	var missing []string
	for _, col := range required {
		if _, ok := t.header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.Validation("缺少必要列: " + strings.Join(missing, ", "))
	}

	for i, rec := range records[1:] {
		if blankRow(rec) {
			continue
		}
		t.rows = append(t.rows, tableRow{line: i + 2, fields: rec})
	}
	if len(t.rows) == 0 {
		return nil, pkgerrors.Validation("文件无数据行（第一行为表头）")
	}
	if len(t.rows) > maxImportRows {
		return nil, pkgerrors.Validation(fmt.Sprintf("数据行数超过上限 %d 行", maxImportRows))
	}
	return t, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Validation("无法解析 Excel 文件")
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, pkgerrors.Validation("读取工作表失败")
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, pkgerrors.Validation("无法解析 CSV 文件: " + err.Error())
	}
	return records, nil
}

// skipRow 记录被跳过的数据行
func skipRow(result *dto.ImportResult, line int, reason string) {
	result.Skipped++
	result.Errors = append(result.Errors, dto.ImportRowError{Row: line, Reason: reason})
}

func blankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
