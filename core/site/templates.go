package site

import (
	"html/template"
	"strings"
)

var funcs = template.FuncMap{
	"join": strings.Join,
}

// contentTemplate is the per-note source file handed to the site generator.
var contentTemplate = template.Must(template.New("content").Funcs(funcs).Parse(`<html>
    <head>
        <title>{{.Title}}</title>
        <meta name="tags" content="{{join .Tags ", "}}">
{{- if .Date}}
        <meta name="date" content="{{.Date}}">
{{- end}}
        <meta name="author" content="{{.Author}}">
        <meta name="category" content="{{.Category}}">
        <meta name="status" content="published">
        <meta name="summary" content="{{.Summary}}">
    </head>
    <body>
{{.Body}}
    </body>
</html>
`))

const pageHead = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.PageTitle}}</title>
    <link rel="alternate" type="application/rss+xml" title="{{.SiteTitle}}" href="/feeds/all.rss.xml">
</head>
<body>
<header><a href="/index.html">{{.SiteTitle}}</a></header>
`

var articleTemplate = template.Must(template.New("article").Funcs(funcs).Parse(pageHead + `<article>
<h1>{{.Article.Title}}</h1>
<p>{{.Article.Author}}{{if .Article.Date}} | {{.Article.Date}}{{end}}{{if .Article.Tags}} | {{join .Article.Tags ", "}}{{end}}</p>
{{.Article.Body}}
</article>
</body>
</html>
`))

var indexTemplate = template.Must(template.New("index").Funcs(funcs).Parse(pageHead + `<main>
{{- range .Articles}}
<article>
    <h2><a href="/{{.Slug}}.html">{{.Title}}</a></h2>
    <p>{{.Author}}{{if .Date}} | {{.Date}}{{end}}</p>
    <p>{{.Summary}}</p>
</article>
{{- end}}
</main>
<nav>
{{- if .Prev}}
<a href="/{{.Prev}}">Newer</a>
{{- end}}
<span>Page {{.Page}} of {{.Pages}}</span>
{{- if .Next}}
<a href="/{{.Next}}">Older</a>
{{- end}}
</nav>
</body>
</html>
`))
