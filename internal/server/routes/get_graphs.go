package routes

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/wikigraph/internal/server/middleware"
	"github.com/OFFIS-RIT/wikigraph/pkg/export"
	"github.com/OFFIS-RIT/wikigraph/pkg/store"

	"github.com/labstack/echo/v4"
)

func GetGraphsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	infos, err := app.Storage.ListGraphs(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if infos == nil {
		infos = []store.GraphInfo{}
	}
	return c.JSON(http.StatusOK, infos)
}

// GetGraphHandler renders a stored graph. The format query parameter picks
// nodes (default), entities or gml.
func GetGraphHandler(c echo.Context) error {
	format := export.Format(c.QueryParam("format"))
	if format == "" {
		format = export.FormatNodes
	}
	return renderGraph(c, format)
}

func GetGraphGMLHandler(c echo.Context) error {
	return renderGraph(c, export.FormatGML)
}

func renderGraph(c echo.Context, format export.Format) error {
	switch format {
	case export.FormatNodes, export.FormatEntities, export.FormatGML:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown format " + string(format)})
	}

	app := c.(*middleware.AppContext).App
	g, err := app.Storage.GetGraph(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrGraphNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "graph not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, g, format); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	contentType := echo.MIMEApplicationJSONCharsetUTF8
	if format == export.FormatGML {
		contentType = "text/plain; charset=us-ascii"
	}
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

func GetGraphAliasesHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	aliases, err := app.Storage.GetAliases(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrGraphNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "graph not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, aliases)
}

// GetGraphArtifactsHandler returns presigned download links for the
// published renderings of a graph.
func GetGraphArtifactsHandler(c echo.Context) error {
	type artifact struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}

	app := c.(*middleware.AppContext).App
	if app.Publisher == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "artifact storage not configured"})
	}
	ctx := c.Request().Context()
	keys, err := app.Publisher.ListArtifacts(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	out := make([]artifact, 0, len(keys))
	for _, k := range keys {
		link, err := app.Publisher.DownloadLink(ctx, k)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		out = append(out, artifact{Key: k, URL: link})
	}
	return c.JSON(http.StatusOK, out)
}
