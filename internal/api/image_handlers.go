package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type imageRequest struct {
	Image string `json:"image" binding:"required"`
}

func AddLapImage(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := app.Ledger().GetByID(id); !ok {
			HandleError(c, app.Logger(), errNotFound, 404, "Lap not found")
			return
		}
		var body imageRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		app.Images().Add(id, body.Image)
		meta := map[string]any{"count": len(app.Images().Get(id))}
		HandleSuccess(c, app.Logger(), nil, meta)
	}
}

func ListLapImages(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleSuccess(c, app.Logger(), app.Images().Get(c.Param("id")), nil)
	}
}

func RemoveLapImage(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid image index")
			return
		}
		id := c.Param("id")
		if index < 0 || index >= len(app.Images().Get(id)) {
			HandleError(c, app.Logger(), errors.New("index out of range"), 404, "Image not found")
			return
		}
		app.Images().Remove(id, index)
		HandleSuccess(c, app.Logger(), nil, nil)
	}
}
