package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/wikigraph/internal/queue"
	"github.com/OFFIS-RIT/wikigraph/internal/server/middleware"
	"github.com/OFFIS-RIT/wikigraph/internal/server/util"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateCrawlHandler queues a crawl. Without a message queue the crawl runs
// in the background of the server process.
func CreateCrawlHandler(c echo.Context) error {
	var job queue.CrawlJob
	if err := c.Bind(&job); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if job.GraphID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		job.GraphID = id
	}
	if err := c.Validate(job); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil && app.Processor == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no crawler available"})
	}
	if !app.Jobs.Start(job.GraphID, util.JobQueued) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "crawl already running for graph"})
	}

	if app.Queue != nil {
		if err := queue.EnqueueCrawl(app.Queue, job); err != nil {
			app.Jobs.Finish(job.GraphID, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	} else {
		go func() {
			app.Jobs.Update(job.GraphID, util.JobRunning)
			_, err := app.Processor.RunCrawl(app.Background, job)
			if err != nil {
				logger.Error("[Server] Crawl failed", "graph", job.GraphID, "err", err)
			}
			app.Jobs.Finish(job.GraphID, err)
		}()
	}

	status, _ := app.Jobs.Status(job.GraphID)
	return c.JSON(http.StatusAccepted, status)
}

func GetCrawlHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	status, ok := app.Jobs.Status(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no crawl known for graph"})
	}
	return c.JSON(http.StatusOK, status)
}
