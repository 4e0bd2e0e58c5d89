package api

import (
	"html/template"
	"io"
)

// docsPage is what the /docs shell shows around the OpenAPI viewer.
type docsPage struct {
	Services []string
	Events   bool
	Metrics  bool
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Luna Bus Host API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    body { height: 100vh; margin: 0; display: flex; flex-direction: column; background: #0d1117; }
    nav { display: flex; gap: 12px; align-items: center; padding: 6px 16px; border-bottom: 1px solid #30363d;
          font: 12px -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; color: #8b949e; }
    nav a { color: #58a6ff; text-decoration: none; font-weight: 500; }
    nav code { color: #c9d1d9; background: #161b22; border-radius: 4px; padding: 1px 5px; }
    elements-api { flex: 1; min-height: 0; }
  </style>
</head>
<body>
  <nav>
    <a href="/docs/bus">Bus socket protocol</a>
    {{- if .Events}}<a href="/events">Call journal (SSE)</a>{{end}}
    {{- if .Metrics}}<a href="/metrics">Metrics</a>{{end}}
    <span>Emulated services:{{range .Services}} <code>{{.}}</code>{{else}} none{{end}}</span>
  </nav>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`))

func renderDocs(w io.Writer, page docsPage) error {
	return docsTemplate.Execute(w, page)
}
