package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	// statsPollInterval is how often the event stream re-reads the queue.
	statsPollInterval = 3 * time.Second
	// heartbeatInterval keeps idle proxies from closing the stream.
	heartbeatInterval = 15 * time.Second
)

// handleSSE streams a "stats" event whenever the desk snapshot changes.
func handleSSE(db *gorm.DB, reference string, poll time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		var last StatsSnapshot
		send := func() {
			snap, err := Snapshot(db, reference)
			if err != nil {
				writeSSE(c.Writer, "error", map[string]string{"error": "stats unavailable"})
				c.Writer.Flush()
				return
			}
			if *snap == last {
				return
			}
			last = *snap
			writeSSE(c.Writer, "stats", snap)
			c.Writer.Flush()
		}
		send()

		ctx := c.Request.Context()
		ticker := time.NewTicker(poll)
		heartbeat := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				send()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
