package embed

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed ui/*
var embeddedFiles embed.FS

// GetFrontendFS 获取前端文件系统（用于嵌入）
func GetFrontendFS() fs.FS {
	return embeddedFiles
}

// SetupRouter 设置谈判控制台页面路由，必须在 API 路由之后调用
func SetupRouter(r *gin.Engine) {
	frontendFS := GetFrontendFS()

	r.GET("/", func(c *gin.Context) {
		serveIndex(c, frontendFS)
	})

	r.NoRoute(func(c *gin.Context) {
		// 对于API请求，返回404
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
			return
		}
		serveIndex(c, frontendFS)
	})
}

func serveIndex(c *gin.Context, frontendFS fs.FS) {
	indexHTML, err := fs.ReadFile(frontendFS, "ui/index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to load index.html")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}
