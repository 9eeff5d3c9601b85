package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/wikigraph/internal/queue"
	"github.com/OFFIS-RIT/wikigraph/internal/server/middleware"
	"github.com/OFFIS-RIT/wikigraph/pkg/store"

	"github.com/labstack/echo/v4"
)

func DeleteGraphHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	id := c.Param("id")
	ctx := c.Request().Context()

	if app.Queue != nil {
		if err := queue.EnqueueDelete(app.Queue, id); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusAccepted, map[string]string{"graph_id": id, "status": "queued"})
	}

	var err error
	if app.Processor != nil {
		if _, err = app.Storage.GetGraph(ctx, id); err == nil {
			err = app.Processor.DeleteGraph(ctx, id)
		}
	} else {
		err = app.Storage.DeleteGraph(ctx, id)
	}
	if errors.Is(err, store.ErrGraphNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "graph not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
