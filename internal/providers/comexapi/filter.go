package comexapi

import (
	"encoding/json"
	"strconv"

	"comexstat/internal/model"
)

type FilterField struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Route       string `json:"route,omitempty"`
	Type        string `json:"type,omitempty"`
	Group       string `json:"group,omitempty"`
	GroupText   string `json:"groupText,omitempty"`
	Hint        string `json:"hint,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
	Parent      string `json:"parent,omitempty"`
}

type FilterValue struct {
	Item    []string `json:"item"`
	IDInput string   `json:"idInput"`
}

// GeneralFilter is the query object the /general endpoint takes in ?filter=.
type GeneralFilter struct {
	YearStart       string        `json:"yearStart"`
	YearEnd         string        `json:"yearEnd"`
	TypeForm        int           `json:"typeForm"`
	TypeOrder       int           `json:"typeOrder"`
	FilterList      []FilterField `json:"filterList"`
	FilterArray     []FilterValue `json:"filterArray"`
	RangeFilter     []any         `json:"rangeFilter"`
	DetailDatabase  []FilterField `json:"detailDatabase"`
	MonthDetail     bool          `json:"monthDetail"`
	MetricFOB       bool          `json:"metricFOB"`
	MetricKG        bool          `json:"metricKG"`
	MetricStatistic bool          `json:"metricStatistic"`
	MonthStart      string        `json:"monthStart"`
	MonthEnd        string        `json:"monthEnd"`
	FormQueue       string        `json:"formQueue"`
	LangDefault     string        `json:"langDefault"`
	MonthStartName  string        `json:"monthStartName"`
	MonthEndName    string        `json:"monthEndName"`
}

var stateField = FilterField{
	ID:          "noUf",
	Text:        "UF do Produto",
	Route:       "/pt/location/states",
	Type:        "1",
	Group:       "gerais",
	GroupText:   "Gerais",
	Hint:        "fieldsForm.general.noUf.description",
	Placeholder: "UFs do Produto",
}

var detailFields = []FilterField{
	{ID: "noUrf", Text: "URF"},
	{ID: "noUf", Text: "UF do Produto"},
	{ID: "noPaispt", Text: "País"},
	{ID: "noBlocopt", Text: "Bloco Econômico"},
	{ID: "noVia", Text: "Via"},
	{ID: "noNcmpt", Text: "NCM - Nomenclatura Comum do Mercosul", ParentID: "coNcm", Parent: "Código NCM"},
	{ID: "noSh6pt", Text: "Subposição (SH6)", ParentID: "coSh6", Parent: "Codigo SH6"},
	{ID: "noSh4pt", Text: "Posição (SH4)", ParentID: "coSh4", Parent: "Codigo SH4"},
	{ID: "noSh2pt", Text: "Capítulo (SH2)", ParentID: "coSh2", Parent: "Codigo SH2"},
	{ID: "noSecpt", Text: "Seção", ParentID: "coNcmSecrom", Parent: "Codigo Seção"},
}

// NewGeneralFilter selects one state and one month of one flow, detailed by
// customs office, state, country, block, route and the NCM hierarchy.
func NewGeneralFilter(year int, month model.Month, state string, flow model.Flow) GeneralFilter {
	y := strconv.Itoa(year)
	return GeneralFilter{
		YearStart:       y,
		YearEnd:         y,
		TypeForm:        flow.TypeForm(),
		TypeOrder:       2,
		FilterList:      []FilterField{stateField},
		FilterArray:     []FilterValue{{Item: []string{state}, IDInput: "noUf"}},
		RangeFilter:     []any{},
		DetailDatabase:  detailFields,
		MonthDetail:     true,
		MetricFOB:       true,
		MetricKG:        true,
		MetricStatistic: true,
		MonthStart:      month.Number,
		MonthEnd:        month.Number,
		FormQueue:       "general",
		LangDefault:     "pt",
		MonthStartName:  month.Name,
		MonthEndName:    month.Name,
	}
}

func (f GeneralFilter) Encode() (string, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeStateField() (string, error) {
	raw, err := json.Marshal(stateField)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
