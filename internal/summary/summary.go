// Package summary 實作分析工具的彙總計算
// 將多位測試者的扁平記錄樞紐成逐機台的通過率、總結備註、
// 平均評分與NG次數統計
package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/intenza/hfeval/internal/catalog"
	"github.com/intenza/hfeval/internal/model"
)

// 彙總表的固定項目名稱
const (
	// ItemPassRate 通過率列
	ItemPassRate = "通過率 (%)"

	// ItemMeanScore 平均整體評分列
	ItemMeanScore = "總體評分"

	// NGSectionPrefix NG統計區塊的名稱前綴
	NGSectionPrefix = "NG："

	// emptyNotes 沒有任何總結備註時的顯示值
	emptyNotes = "無"
)

// Row 彙總表中的一列，依 (區塊, 項目) 索引
type Row struct {
	// Section 區塊名稱（NG統計列為 "NG：<區塊>"）
	Section string `json:"section"`

	// Item 項目名稱
	Item string `json:"item"`

	// Cells 機器代碼 → 格式化後的值；缺key表示該機台無此列資料
	Cells map[string]string `json:"cells"`
}

// SummaryTable 彙總結果
// 欄位永遠涵蓋目錄中的全部機器代碼，即使輸入中沒出現
type SummaryTable struct {
	// Machines 欄位順序，等於目錄的合併機台清單
	Machines []string `json:"machines"`

	// Rows 依區塊順序排列的列
	Rows []*Row `json:"rows"`
}

// sectionStats 單一 (機台, 區塊) 的累計值
type sectionStats struct {
	present   bool
	passCount int
	ngCount   int
	notes     []string
}

// Summarize 計算彙總表，為輸入記錄與目錄的純函式
// 未選擇與N/A一律不計入通過率分母；缺評分視為缺值而非零
func Summarize(records []*model.Record, cat *catalog.Catalog) *SummaryTable {
	machines := cat.AllMachines()

	// (機台, 區塊) 累計
	stats := make(map[string]map[string]*sectionStats)
	// 機台 → 評分集合
	scores := make(map[string][]int)
	// 機台 → 區塊 → 項目 → NG次數
	ngCounts := make(map[string]map[string]map[string]int)

	for _, r := range records {
		if stats[r.MachineCode] == nil {
			stats[r.MachineCode] = make(map[string]*sectionStats)
		}
		st := stats[r.MachineCode][r.Section]
		if st == nil {
			st = &sectionStats{}
			stats[r.MachineCode][r.Section] = st
		}
		st.present = true

		switch r.Verdict {
		case model.VerdictPass:
			st.passCount++
		case model.VerdictNG:
			st.ngCount++
			if ngCounts[r.MachineCode] == nil {
				ngCounts[r.MachineCode] = make(map[string]map[string]int)
			}
			if ngCounts[r.MachineCode][r.Section] == nil {
				ngCounts[r.MachineCode][r.Section] = make(map[string]int)
			}
			ngCounts[r.MachineCode][r.Section][r.Item]++
		}

		if r.IsSectionSummary() && strings.TrimSpace(r.Note) != "" {
			st.notes = append(st.notes, fmt.Sprintf("%s（%s）", r.Note, r.Tester))
		}

		if r.IsOverallScore() && r.Score != nil {
			scores[r.MachineCode] = append(scores[r.MachineCode], *r.Score)
		}
	}

	table := &SummaryTable{Machines: machines}

	// 區塊順序：目錄區塊 → 補充追蹤 → 整體評估
	sectionOrder := append(cat.SectionNames(), model.SectionSupplementary, model.SectionOverall)
	for _, section := range sectionOrder {
		passRow := &Row{Section: section, Item: ItemPassRate, Cells: make(map[string]string)}
		noteRow := &Row{Section: section, Item: model.ItemSectionSummary, Cells: make(map[string]string)}

		for _, machine := range machines {
			st := stats[machine][section]
			if st == nil || !st.present {
				continue
			}

			total := st.passCount + st.ngCount
			if total > 0 {
				rate := float64(st.passCount) / float64(total) * 100
				passRow.Cells[machine] = fmt.Sprintf("%.1f%%", rate)
			} else {
				passRow.Cells[machine] = "N/A"
			}

			if len(st.notes) > 0 {
				noteRow.Cells[machine] = strings.Join(st.notes, "; ")
			} else {
				noteRow.Cells[machine] = emptyNotes
			}
		}

		if len(passRow.Cells) > 0 {
			table.Rows = append(table.Rows, passRow, noteRow)
		}
	}

	// 平均整體評分：每台機器都有明確的值，沒有評分時為 N/A
	scoreRow := &Row{Section: model.SectionOverall, Item: ItemMeanScore, Cells: make(map[string]string)}
	for _, machine := range machines {
		if vals := scores[machine]; len(vals) > 0 {
			sum := 0
			for _, v := range vals {
				sum += v
			}
			scoreRow.Cells[machine] = fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
		} else {
			scoreRow.Cells[machine] = "N/A"
		}
	}
	table.Rows = append(table.Rows, scoreRow)

	table.Rows = append(table.Rows, buildNGRows(machines, ngCounts)...)

	return table
}

// buildNGRows 建立NG次數統計列
// 區塊依名稱排序；區塊內的項目依總次數遞減排序（同次數依項目名稱）
func buildNGRows(machines []string, ngCounts map[string]map[string]map[string]int) []*Row {
	// 區塊 → 項目 → 機台 → 次數
	merged := make(map[string]map[string]map[string]int)
	for machine, sections := range ngCounts {
		for section, items := range sections {
			if merged[section] == nil {
				merged[section] = make(map[string]map[string]int)
			}
			for item, count := range items {
				if merged[section][item] == nil {
					merged[section][item] = make(map[string]int)
				}
				merged[section][item][machine] = count
			}
		}
	}

	var sections []string
	for section := range merged {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	var rows []*Row
	for _, section := range sections {
		items := merged[section]

		type itemTotal struct {
			item  string
			total int
		}
		var totals []itemTotal
		for item, byMachine := range items {
			t := 0
			for _, c := range byMachine {
				t += c
			}
			totals = append(totals, itemTotal{item: item, total: t})
		}
		sort.Slice(totals, func(i, j int) bool {
			if totals[i].total != totals[j].total {
				return totals[i].total > totals[j].total
			}
			return totals[i].item < totals[j].item
		})

		for _, it := range totals {
			row := &Row{
				Section: NGSectionPrefix + section,
				Item:    it.item,
				Cells:   make(map[string]string),
			}
			for _, machine := range machines {
				if count, ok := items[it.item][machine]; ok {
					row.Cells[machine] = fmt.Sprintf("%d 次", count)
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}
