package cors

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New returns the CORS middleware. An empty origin list allows every origin without credentials.
func New(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		MaxAge:        10 * time.Minute,
	}

	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cors.New(cfg)
	}

	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}
	cfg.AllowCredentials = true
	cfg.AllowOriginFunc = func(origin string) bool {
		_, ok := originSet[strings.TrimRight(origin, "/")]
		return ok
	}
	return cors.New(cfg)
}
