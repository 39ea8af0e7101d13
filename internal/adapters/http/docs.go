package http

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>AquaRipple API - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// openAPIPath is relative to the working directory the server is started from.
const openAPIPath = "api/openapi.yaml"

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml. The document is read once; when it is missing the
// UI is still served and the document route answers 404.
func SetupDocs(app *fiber.App) {
	spec, err := os.ReadFile(openAPIPath)
	if err != nil {
		slog.Warn("openapi document unavailable", "path", openAPIPath, "error", err)
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if spec == nil {
			return newError(c, fiber.StatusNotFound, "not_found", "openapi.yaml not found")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(spec)
	})
}
