package middleware

import (
	"context"

	"github.com/OFFIS-RIT/wikigraph/internal/queue"
	"github.com/OFFIS-RIT/wikigraph/internal/server/util"
	"github.com/OFFIS-RIT/wikigraph/internal/storage"
	"github.com/OFFIS-RIT/wikigraph/pkg/store"

	"github.com/labstack/echo/v4"
)

// App carries the collaborators every handler may use.
type App struct {
	Storage store.GraphStorage
	// Queue receives crawl and delete jobs. When nil, jobs run inside the
	// server process through Processor.
	Queue     queue.Channel
	Processor *queue.Processor
	Publisher *storage.Publisher
	Jobs      *util.JobTracker
	APIKey    string
	// Background bounds in-process jobs; it ends on server shutdown.
	Background context.Context
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	if app.Jobs == nil {
		app.Jobs = util.NewJobTracker()
	}
	if app.Background == nil {
		app.Background = context.Background()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
