package mail

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sync"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templatesFS embed.FS

const TemplateSubscriptionExpiring = "subscription_expiring"

var (
	engine     *html.Engine
	engineErr  error
	engineOnce sync.Once
)

func templateEngine() (*html.Engine, error) {
	engineOnce.Do(func() {
		sub, err := fs.Sub(templatesFS, "templates")
		if err != nil {
			engineErr = err
			return
		}
		e := html.NewFileSystem(http.FS(sub), ".html")
		if err := e.Load(); err != nil {
			engineErr = err
			return
		}
		engine = e
	})
	return engine, engineErr
}

// Render executes the named email template.
func Render(name string, data any) (string, error) {
	e, err := templateEngine()
	if err != nil {
		return "", fmt.Errorf("load mail templates: %w", err)
	}
	var buf bytes.Buffer
	if err := e.Render(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// ExpiringData fills the subscription expiry warning.
type ExpiringData struct {
	SubscriberName string
	CoachName      string
	Plan           string
	EndDate        string
	GraceEndDate   string
}
