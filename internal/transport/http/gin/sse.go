package httpgin

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tably/tably-go/internal/broadcast"
)

const heartbeatInterval = 15 * time.Second

// @Summary  Subscribe to live seat updates for one slot
// @Param    date  query  string  true  "2006-01-02"
// @Param    time  query  string  true  "15:04"
// @Success  200  {string}  string  "text/event-stream of seat_update events"
// @Failure  400  {object}  ErrorResponse
// @Router   /seatmap/subscribe [get]
func handleSeatMapSubscribe(hub *broadcast.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		slot, ok := parseSlotQuery(c)
		if !ok {
			return
		}

		sub := hub.Subscribe(slot)
		defer sub.Close()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		// One event name carries all four reasons; clients discriminate on
		// status/reason. A dropped event is recovered by re-fetching the
		// availability snapshot, never by replay.
		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case ev, open := <-sub.Events():
				if !open {
					return false
				}
				c.SSEvent("seat_update", ev)
				return true
			case <-heartbeat.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			}
		})
	}
}
