package handler

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Tree   *TreeHandler
	File   *FileHandler
	WS     *WSHandler
	Upload *UploadHandler
	// Assets is served under /assets/ and holds the text fetched by 'l'.
	Assets http.FileSystem
	// Web is the single page, served for every other path.
	Web fs.FS
}

// NewRouter wires the API routes, static assets and the page.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/tree", h.Tree.GetTree)
		api.GET("/files/*path", h.File.GetFile)
		api.GET("/raw/*path", h.File.GetRaw)
		api.GET("/ws", h.WS.HandleWS)
		api.POST("/upload/:id", h.Upload.PostUpload)
		api.DELETE("/upload/:id", h.Upload.CancelUpload)
		api.GET("/download/:id", h.Upload.GetDownload)
	}

	if h.Assets != nil {
		r.StaticFS("/assets", h.Assets)
	}
	if h.Web != nil {
		r.NoRoute(gin.WrapH(http.FileServer(http.FS(h.Web))))
	}
	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
