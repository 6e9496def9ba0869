// Package catalog 定義評估目錄：系列、機台、評估區塊與問題
package catalog

import (
	"os"

	"github.com/intenza/hfeval/internal/model"
	"gopkg.in/yaml.v3"
)

// Series 一個系列：共用同一評估流程的一組機台
type Series struct {
	// Name 系列名稱，如 "ZL 系列"
	Name string `yaml:"name" json:"name" validate:"required"`

	// Machines 依填寫順序排列的機器代碼
	Machines []string `yaml:"machines" json:"machines" validate:"required,min=1"`
}

// Section 評估清單中的一個區塊
type Section struct {
	// Name 區塊名稱，如 "觸感體驗"
	Name string `yaml:"name" json:"name" validate:"required"`

	// Items 區塊內依序排列的問題項目
	Items []string `yaml:"items" json:"items" validate:"required,min=1"`
}

// Catalog 整個評估目錄，啟動時載入一次後不再變動
// 系列、區塊與問題的順序決定下游所有顯示與排序
type Catalog struct {
	// Series 依序排列的系列
	Series []Series `yaml:"series" json:"series" validate:"required,min=1"`

	// Sections 依序排列的評估區塊
	Sections []Section `yaml:"sections" json:"sections" validate:"required,min=1"`

	// Supplementary 機器代碼 → 補充追蹤問題，僅部分機台有
	Supplementary map[string][]string `yaml:"supplementary" json:"supplementary,omitempty"`
}

// Default 內建目錄，與現行評估表單一致
func Default() *Catalog {
	return &Catalog{
		Series: []Series{
			{
				Name:     "ZL 系列",
				Machines: []string{"ZL-01", "ZL-02", "ZL-03", "ZL-04", "ZL-05", "ZL-07", "ZL-08", "ZL-09", "ZL-10", "ZL-11"},
			},
			{
				Name:     "DL 系列",
				Machines: []string{"DL-03", "DL-04", "DL-05", "DL-10", "DL-13"},
			},
		},
		Sections: []Section{
			{
				Name:  "觸感體驗",
				Items: []string{"座位調整重量片是否方便？", "整體動作是否穩定有質感？", "承靠部位是否舒適？", "抓握部分是否符合手感？"},
			},
			{
				Name:  "人因調整",
				Items: []string{"把手調整是否容易？", "承靠墊位置是否符合需求？", "坐墊位置是否調整方便？", "握把／踏板位置與角度是否符合需求？", "使用時關節是否可對齊軸點？"},
			},
			{
				Name:  "力線評估",
				Items: []string{"起始重量是否恰當？", "動作過程中重量變化是否流暢？"},
			},
			{
				Name:  "運動軌跡",
				Items: []string{"是否能完成全行程訓練？", "關節活動角度是否自然？", "運動軌跡是否能完全刺激目標肌群？"},
			},
			{
				Name:  "心理感受",
				Items: []string{"使用後的滿意度如何？", "是否有願意推薦給他人的意願？"},
			},
			{
				Name:  "價值感受",
				Items: []string{"你認為我們品牌在傳遞什麼形象？", "你估算這台機器價值多少？"},
			},
		},
		Supplementary: map[string][]string{
			"DL-03": {"覺得整體重量會太輕嗎？"},
			"DL-04": {"覺得輕的好還是重的好？"},
			"ZL-01": {"座椅目前夠低嗎？"},
			"ZL-02": {"椅背會太低嗎？"},
			"ZL-07": {"腰帶會很不舒服嗎？"},
			"ZL-08": {"會覺得很難上機嗎？"},
			"ZL-09": {"壓腿滾筒會不會太硬很不舒服？"},
		},
	}
}

// LoadFromFile 從YAML檔載入目錄
func LoadFromFile(filePath string) (*Catalog, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, filePath, "read", "讀取目錄檔失敗", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, model.NewFileError(model.ErrCodeInvalidFormat, filePath, "unmarshal", "目錄檔格式錯誤", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 驗證目錄的結構約束
// 機器代碼須跨系列唯一，補充問題只能掛在已知機台上
func (c *Catalog) Validate() error {
	errs := model.NewErrorList()

	if len(c.Series) == 0 {
		errs.Add(model.NewValidationError("series", nil, "min=1", "目錄至少需要一個系列"))
	}
	if len(c.Sections) == 0 {
		errs.Add(model.NewValidationError("sections", nil, "min=1", "目錄至少需要一個評估區塊"))
	}

	seen := make(map[string]string)
	for _, s := range c.Series {
		if s.Name == "" {
			errs.Add(model.NewValidationError("series.name", s.Name, "required", "系列名稱不能為空"))
		}
		for _, m := range s.Machines {
			if prev, ok := seen[m]; ok {
				errs.Add(model.NewValidationError("series.machines", m, "unique",
					"機器代碼重複出現於系列 "+prev+" 與 "+s.Name))
				continue
			}
			seen[m] = s.Name
		}
	}

	for _, sec := range c.Sections {
		if sec.Name == "" {
			errs.Add(model.NewValidationError("sections.name", sec.Name, "required", "區塊名稱不能為空"))
		}
		if len(sec.Items) == 0 {
			errs.Add(model.NewValidationError("sections.items", sec.Name, "min=1", "區塊必須至少有一個問題項目"))
		}
	}

	for code := range c.Supplementary {
		if _, ok := seen[code]; !ok {
			errs.Add(model.NewValidationError("supplementary", code, "known_machine", "補充問題掛在未知的機器代碼上"))
		}
	}

	if errs.HasError() {
		return errs
	}
	return nil
}

// SeriesByName 依名稱查找系列
func (c *Catalog) SeriesByName(name string) (*Series, bool) {
	for i := range c.Series {
		if c.Series[i].Name == name {
			return &c.Series[i], true
		}
	}
	return nil, false
}

// SeriesOf 查找機器代碼所屬的系列及其在系列內的位置
func (c *Catalog) SeriesOf(machineCode string) (*Series, int, bool) {
	for i := range c.Series {
		for j, m := range c.Series[i].Machines {
			if m == machineCode {
				return &c.Series[i], j, true
			}
		}
	}
	return nil, 0, false
}

// AllMachines 依目錄順序回傳所有機器代碼
func (c *Catalog) AllMachines() []string {
	var codes []string
	for _, s := range c.Series {
		codes = append(codes, s.Machines...)
	}
	return codes
}

// SectionNames 依序回傳區塊名稱
func (c *Catalog) SectionNames() []string {
	names := make([]string, 0, len(c.Sections))
	for _, sec := range c.Sections {
		names = append(names, sec.Name)
	}
	return names
}

// SupplementaryFor 回傳指定機台的補充問題，沒有則為nil
func (c *Catalog) SupplementaryFor(machineCode string) []string {
	return c.Supplementary[machineCode]
}

// SeriesNames 依序回傳系列名稱
func (c *Catalog) SeriesNames() []string {
	names := make([]string, 0, len(c.Series))
	for _, s := range c.Series {
		names = append(names, s.Name)
	}
	return names
}
