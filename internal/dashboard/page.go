package dashboard

import (
	"html/template"
	"net/url"
)

type pageData struct {
	Title     string
	Subtitle  string
	Footer    string
	Info      []string
	Source    string
	SourceURL string
	Header    []string
	Rows      [][]string
	Page      int
	Pages     int
	Prev      int
	Next      int
	Columns   []string
	Selected  string
	X         string
}

func (p pageData) ChartURL() string {
	return "/histogram.svg?col=" + url.QueryEscape(p.Selected)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em auto; max-width: 1000px; }
h1, h5 { text-align: center; }
h2 { color: #117029; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 4px 8px; text-align: left; }
th { background: #f4f4f4; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Subtitle}}<h2>{{.Subtitle}}</h2>{{end}}
{{if or .Info .SourceURL}}<p>Informações adicionais:</p>
<ul>
{{range .Info}}<li>{{.}}</li>
{{end}}{{if .SourceURL}}<li>Fonte da pesquisa: <a href="{{.SourceURL}}">{{if .Source}}{{.Source}}{{else}}{{.SourceURL}}{{end}}</a></li>
{{end}}</ul>{{end}}
<hr>
<h2>Tabela</h2>
<table>
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody>
</table>
<p>
{{if .Prev}}<a href="?page={{.Prev}}&amp;col={{.Selected}}">&laquo;</a>{{end}}
{{.Page}} / {{.Pages}}
{{if .Next}}<a href="?page={{.Next}}&amp;col={{.Selected}}">&raquo;</a>{{end}}
</p>
<hr>
<h2>Seleção de Variáveis para Histograma</h2>
<form method="get">
<input type="hidden" name="page" value="{{.Page}}">
{{range .Columns}}<label><input type="radio" name="col" value="{{.}}" onchange="this.form.submit()"{{if eq . $.Selected}} checked{{end}}> {{.}}</label>
{{end}}<noscript><button type="submit">OK</button></noscript>
</form>
<img src="{{.ChartURL}}" alt="{{.Selected}} por {{.X}}">
<hr>
{{if .Footer}}<h5>{{.Footer}}</h5>{{end}}
</body>
</html>
`))
