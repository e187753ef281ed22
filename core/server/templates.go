package server

import (
	"html/template"

	"github.com/gaurav-prasanna/notepipe/core"
)

type listingPage struct {
	Title string
	Notes []core.NoteSummary
}

var listingTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <link rel="alternate" type="application/rss+xml" title="{{.Title}}" href="/rss">
</head>
<body>
<h1>{{.Title}}</h1>
{{- if not .Notes}}
<p>No notes yet.</p>
{{- end}}
<ul>
{{- range .Notes}}
    <li>
        <h2><a href="/note/{{.Folder}}/note.html">{{.Title}}</a></h2>
        <p>{{.Author}} | {{.CreatedAt}}{{if .Tags}} | {{range $i, $t := .Tags}}{{if $i}}, {{end}}{{$t}}{{end}}{{end}}</p>
        <p>{{.Summary}}</p>
    </li>
{{- end}}
</ul>
</body>
</html>
`))
