package comex

import (
	"fmt"
	"strconv"
	"strings"

	"comexstat/internal/model"
	"comexstat/internal/table"
)

// Records converts a renamed trade table into typed records. Freight and
// insurance are zero when the columns are absent.
func Records(t table.Table, flow model.Flow) ([]model.TradeRecord, error) {
	country, state, office := ColOriginCountry, ColDestState, ColLandingURF
	if flow == model.FlowExport {
		country, state, office = ColDestCountry, ColOriginState, ColShippingURF
	}

	index := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		index[name] = i
	}
	required := []string{ColYear, ColMonth, ColNCM, ColUnit, country, state, ColTransport, office, ColQuantity, ColNetKg, ColFOB}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", table.ErrUnknownColumn, name)
		}
	}

	records := make([]model.TradeRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		cell := func(name string) string {
			pos, ok := index[name]
			if !ok || pos >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[pos])
		}
		var parseErr error
		number := func(name string) int64 {
			value := cell(name)
			if value == "" || parseErr != nil {
				return 0
			}
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				parseErr = fmt.Errorf("comex: row %d: %s: %w", i+1, name, err)
			}
			return n
		}

		record := model.TradeRecord{
			Flow:          flow,
			Year:          int(number(ColYear)),
			Month:         int(number(ColMonth)),
			NCM:           cell(ColNCM),
			Unit:          cell(ColUnit),
			CountryCode:   cell(country),
			State:         cell(state),
			Transport:     cell(ColTransport),
			CustomsOffice: cell(office),
			Quantity:      number(ColQuantity),
			NetKg:         number(ColNetKg),
			FOB:           number(ColFOB),
			Freight:       number(ColFreight),
			Insurance:     number(ColInsurance),
		}
		if parseErr != nil {
			return nil, parseErr
		}
		records = append(records, record)
	}
	return records, nil
}

// Countries converts the renamed country table.
func Countries(t table.Table) ([]model.Country, error) {
	cols := make([]int, 0, 3)
	for _, name := range []string{ColCountryCode, ColCountryName, ColBlockName} {
		i, ok := t.Index(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", table.ErrUnknownColumn, name)
		}
		cols = append(cols, i)
	}
	sub, err := t.Select(cols...)
	if err != nil {
		return nil, err
	}
	countries := make([]model.Country, 0, sub.Len())
	for _, row := range sub.Rows {
		countries = append(countries, model.Country{Code: row[0], Name: row[1], Block: row[2]})
	}
	return countries, nil
}
