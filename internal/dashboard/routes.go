package dashboard

import (
	"bytes"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/archive"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth(opts.DB))

	api := router.Group("/api")
	api.Use(requireToken(opts.Token))
	api.GET("/stats", handleStats(opts.DB, opts.Reference))
	api.GET("/lines", handleActiveLines(opts.DB))
	api.GET("/unclaimed", handleUnclaimed(opts.DB))
	api.GET("/unclaimed.csv", handleUnclaimedCSV(opts.DB))
	api.GET("/events", handleSSE(opts.DB, opts.Reference, statsPollInterval))
}

// requireToken rejects requests without the configured bearer token. An
// empty token disables the check.
func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleStats(db *gorm.DB, reference string) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := Snapshot(db, reference)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func handleActiveLines(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		lines, err := ActiveLines(db)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"lines": lines, "count": len(lines)})
	}
}

func handleUnclaimed(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := archive.ExportUnclaimed(db)
		if err != nil {
			serverError(c, err)
			return
		}
		rows := make([]UnclaimedRow, 0, len(items))
		for _, it := range items {
			rows = append(rows, UnclaimedRow{ID: it.ID, Number: it.Number, Name: it.Name, Address: it.Address, Email: it.Email})
		}
		c.JSON(http.StatusOK, gin.H{"items": rows, "count": len(rows)})
	}
}

func handleUnclaimedCSV(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := archive.ExportUnclaimed(db)
		if err != nil {
			serverError(c, err)
			return
		}
		tb := archive.UnclaimedTable(items)
		var buf bytes.Buffer
		if err := archive.WriteCSV(&buf, tb); err != nil {
			serverError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+tb.Filename(time.Now())+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}

func serverError(c *gin.Context, err error) {
	log.Printf("dashboard: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
