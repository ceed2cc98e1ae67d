package portal

import (
	_ "embed"
	"fmt"
	"html"
	"os"
	"strings"
)

// ContentPlaceholder is replaced in the error page with the failure message.
const ContentPlaceholder = "%CONTENT%"

var (
	//go:embed pages/form.html
	DefaultPage string

	//go:embed pages/error.html
	DefaultErrorPage string

	//go:embed pages/success.html
	DefaultSuccessPage string
)

// ReadPage returns the contents of the HTML file at path, or fallback when
// path is empty.
func ReadPage(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read page %s: %w", path, err)
	}
	return string(data), nil
}

// renderError substitutes message into the error page template. The message is
// HTML-escaped because it may echo user input.
func renderError(page, message string) string {
	return strings.ReplaceAll(page, ContentPlaceholder, html.EscapeString(message))
}
