package comex

import (
	"comexstat/internal/model"
	"comexstat/internal/table"
)

// NoBlock is the block name given to countries absent from PAIS_BLOCO.csv.
const NoBlock = "Não disponível"

const (
	ColYear          = "Ano"
	ColMonth         = "Mês"
	ColNCM           = "NCM"
	ColUnit          = "Unidade estatística"
	ColOriginCountry = "País de origem"
	ColDestCountry   = "País de destino"
	ColDestState     = "UF de destino"
	ColOriginState   = "UF de origem"
	ColTransport     = "Meio de transporte"
	ColLandingURF    = "URF desembarque"
	ColShippingURF   = "URF embarque"
	ColQuantity      = "Quantidade estatística"
	ColNetKg         = "Kg líquido"
	ColFOB           = "Valor Free On Board"
	ColFreight       = "Valor de frete"
	ColInsurance     = "Valor de seguro"

	ColCountryCode = "Código do país"
	ColCountryName = "Nome do país"
	ColBlockName   = "Nome do bloco"
)

var tradeSource = []string{
	"CO_ANO", "CO_MES", "CO_NCM", "CO_UNID", "CO_PAIS", "SG_UF_NCM",
	"CO_VIA", "CO_URF", "QT_ESTAT", "KG_LIQUIDO", "VL_FOB", "VL_FRETE", "VL_SEGURO",
}

// ImportSchema labels IMP_<year>.csv.
var ImportSchema = table.Schema{
	Source: tradeSource,
	Target: []string{
		ColYear, ColMonth, ColNCM, ColUnit, ColOriginCountry, ColDestState,
		ColTransport, ColLandingURF, ColQuantity, ColNetKg, ColFOB, ColFreight, ColInsurance,
	},
	Optional: 2,
}

// ExportSchema labels EXP_<year>.csv.
var ExportSchema = table.Schema{
	Source: tradeSource,
	Target: []string{
		ColYear, ColMonth, ColNCM, ColUnit, ColDestCountry, ColOriginState,
		ColTransport, ColShippingURF, ColQuantity, ColNetKg, ColFOB, ColFreight, ColInsurance,
	},
	Optional: 2,
}

// CountrySchema labels the country table joined with its block.
var CountrySchema = table.Schema{
	Source: []string{"CO_PAIS", "NO_PAIS", "NO_BLOCO"},
	Target: []string{ColCountryCode, ColCountryName, ColBlockName},
}

func SchemaForFlow(flow model.Flow) table.Schema {
	if flow == model.FlowImport {
		return ImportSchema
	}
	return ExportSchema
}

// CountryCodes joins countries with their first block and applies CountrySchema.
func CountryCodes(countries, blocks table.Table) (table.Table, error) {
	joined, err := table.LeftJoinFirst(countries, blocks, "CO_PAIS", NoBlock)
	if err != nil {
		return table.Table{}, err
	}
	return table.Rename(joined, CountrySchema)
}
