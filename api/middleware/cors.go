package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the given origins, all origins when empty or "*".
func CORS(origins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		// browser extensions send chrome-extension:// origins
		config.AllowBrowserExtensions = true
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
	config.ExposeHeaders = []string{RequestIDHeader}

	return cors.New(config)
}
