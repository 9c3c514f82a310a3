package routes

import (
	"bytes"
	"html/template"

	"github.com/dayoon-p/dmchat/internal/config"
	"github.com/gofiber/fiber/v2"
)

const docsIndexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ .Title }}</title>
  <style>
    body { margin: 0 auto; max-width: 760px; padding: 32px 16px; font-family: Georgia, serif; color: #132019; }
    h1 { margin-bottom: 4px; }
    p.lead { color: #536258; margin-top: 0; }
    table { width: 100%; border-collapse: collapse; margin-top: 24px; }
    th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid #d8ddd6; }
    code { background: #f1f3ef; padding: 1px 5px; border-radius: 4px; font-size: 0.9em; }
  </style>
</head>
<body>
  <h1>{{ .Title }}</h1>
  <p class="lead">Direct-messaging API. All /api/v1 routes require a Bearer token.</p>
  <table>
    <tr><th>Method</th><th>Path</th><th>Description</th></tr>
    {{ range .Endpoints }}
    <tr><td><code>{{ .Method }}</code></td><td><code>{{ .Path }}</code></td><td>{{ .Description }}</td></tr>
    {{ end }}
  </table>
</body>
</html>`

type docsEndpoint struct {
	Method      string
	Path        string
	Description string
}

var docsEndpoints = []docsEndpoint{
	{"POST", "/api/auth/register", "Create an account"},
	{"POST", "/api/auth/login", "Exchange credentials for a token"},
	{"GET", "/api/auth/me", "Current account"},
	{"GET", "/api/v1/users/search?query=", "Search users by username or email"},
	{"GET", "/api/v1/conversations", "Conversation list with unread counts"},
	{"POST", "/api/v1/conversations", "Get or create a DM with another user"},
	{"GET", "/api/v1/conversations/:id/messages", "Messages, newest first, cursor-paginated"},
	{"POST", "/api/v1/conversations/:id/messages", "Send a message"},
	{"PATCH", "/api/v1/conversations/:id/read", "Advance the read cursor"},
	{"GET", "/api/ws?token=", "Realtime message delivery (WebSocket)"},
}

// registerDocsRoutes serves a static endpoint index. Only mounted in
// development with ENABLE_API_DOCS set.
func registerDocsRoutes(app *fiber.App, cfg *config.Config) error {
	if !cfg.DocsEnabled() {
		return nil
	}

	tmpl, err := template.New("docs").Parse(docsIndexHTML)
	if err != nil {
		return err
	}

	var rendered bytes.Buffer
	err = tmpl.Execute(&rendered, struct {
		Title     string
		Endpoints []docsEndpoint
	}{
		Title:     "dmchat API",
		Endpoints: docsEndpoints,
	})
	if err != nil {
		return err
	}
	page := rendered.Bytes()

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		c.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		return c.Send(page)
	})

	return nil
}
