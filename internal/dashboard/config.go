package dashboard

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Port       string        `env:"PORT" envDefault:"8090"`
	DataPath   string        `env:"DASHBOARD_DATA" envDefault:"data/crimes-pb-2015-2018.csv"`
	X          string        `env:"DASHBOARD_X" envDefault:"Bairros"`
	Columns    []string      `env:"DASHBOARD_COLUMNS" envSeparator:","`
	Default    string        `env:"DASHBOARD_DEFAULT" envDefault:"Arma de fogo"`
	Title      string        `env:"DASHBOARD_TITLE" envDefault:"Crimes Violentos Letais Intencionais (CVLI)"`
	Subtitle   string        `env:"DASHBOARD_SUBTITLE" envDefault:"Cidade: João Pessoa - PB"`
	Footer     string        `env:"DASHBOARD_FOOTER" envDefault:"UFPB | CDIA | DATAVIZ | Ano 2023"`
	PageSize   int           `env:"DASHBOARD_PAGE_SIZE" envDefault:"6"`
	CacheTTL   time.Duration `env:"DASHBOARD_CACHE_TTL" envDefault:"60s"`
	CORSOrigin string        `env:"CORS_ORIGIN" envDefault:"*"`

	// Info items are separated by ";" and listed under the subtitle with the
	// source link.
	Info       []string `env:"DASHBOARD_INFO" envSeparator:";" envDefault:"Cobertura Temporal: 2015 - 2018;Prevalência (p): quantifica o quanto é comum, ou rara, uma determinada ocorrência ou situação numa população.;Fórmula: p = ( quantidade de casos / população ) x 100%"`
	SourceName string   `env:"DASHBOARD_SOURCE_NAME" envDefault:"Repositório UFPB: Tese"`
	SourceURL  string   `env:"DASHBOARD_SOURCE_URL" envDefault:"https://repositorio.ufpb.br/jspui/bitstream/123456789/16029/1/PMS09102019.pdf"`
}

func Load() (Config, error) {
	var cfg Config
	return cfg, env.Parse(&cfg)
}
