package handler

import (
	"github.com/gin-gonic/gin"
)

// DocsDir holds swagger-ui.html and swagger.json, relative to the working directory.
var DocsDir = "./docs"

// AddSwaggerRoutes serves the static API documentation.
func AddSwaggerRoutes(router *gin.Engine) {
	router.StaticFile("/docs", DocsDir+"/swagger-ui.html")
	router.StaticFile("/docs/swagger.json", DocsDir+"/swagger.json")

	// Also serve at /swagger.json for compatibility
	router.StaticFile("/swagger.json", DocsDir+"/swagger.json")
}
