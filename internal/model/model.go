package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Flow string

const (
	FlowExport Flow = "export"
	FlowImport Flow = "import"
)

// TypeForm is the numeric form type the comexstat API expects for a flow.
func (f Flow) TypeForm() int {
	if f == FlowImport {
		return 2
	}
	return 1
}

// FilePrefix is the prefix of the bulk CSV file names (EXP_2020.csv, IMP_2020.csv).
func (f Flow) FilePrefix() string {
	if f == FlowImport {
		return "IMP"
	}
	return "EXP"
}

type TradeRecord struct {
	Flow          Flow
	Year          int
	Month         int
	NCM           string
	Unit          string
	CountryCode   string
	State         string
	Transport     string
	CustomsOffice string
	Quantity      int64
	NetKg         int64
	FOB           int64
	Freight       int64
	Insurance     int64
}

type Country struct {
	Code  string
	Name  string
	Block string
}

type State struct {
	ID   string
	Text string
}

type Month struct {
	Number string
	Name   string
}

// Months lists the calendar months with the names the comexstat query form uses.
var Months = []Month{
	{"01", "Janeiro"}, {"02", "Fevereiro"}, {"03", "Março"}, {"04", "Abril"},
	{"05", "Maio"}, {"06", "Junho"}, {"07", "Julho"}, {"08", "Agosto"},
	{"09", "Setembro"}, {"10", "Outubro"}, {"11", "Novembro"}, {"12", "Dezembro"},
}

type FetchStatus string

const (
	FetchOK     FetchStatus = "ok"
	FetchEmpty  FetchStatus = "empty"
	FetchFailed FetchStatus = "failed"
)

// FetchRun is the recorded outcome of one (state, month, flow) request.
type FetchRun struct {
	RunID     string
	Flow      Flow
	Year      int
	State     string
	Month     string
	Status    FetchStatus
	Rows      int
	Error     string
	FetchedAt time.Time
}

type Transfer struct {
	Month  string
	Year   string
	Entity string
	Total  decimal.Decimal
}
