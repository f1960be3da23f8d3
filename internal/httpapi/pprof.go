package httpapi

import (
	"net/http/pprof"

	"github.com/gin-gonic/gin"
)

// mountPprof exposes the runtime profiles under /debug/pprof. Named profiles
// (heap, goroutine, ...) are served by Index.
func mountPprof(r gin.IRouter) {
	g := r.Group("/debug/pprof")
	g.GET("/", gin.WrapF(pprof.Index))
	g.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	g.GET("/profile", gin.WrapF(pprof.Profile))
	g.GET("/symbol", gin.WrapF(pprof.Symbol))
	g.POST("/symbol", gin.WrapF(pprof.Symbol))
	g.GET("/trace", gin.WrapF(pprof.Trace))
	g.GET("/:profile", gin.WrapF(pprof.Index))
}
