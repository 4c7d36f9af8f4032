package webserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/fundcomms/src/api/middleware"
	"github.com/stake-plus/fundcomms/src/bot/components/ledger"
	"github.com/stake-plus/fundcomms/src/bot/components/review"
	"github.com/stake-plus/fundcomms/src/bot/config"
)

// New builds the read-only ops API. Moderation itself happens in chat; this
// surface only exposes health, the live ledger total, and the pending queue.
func New(cfg config.Config, store review.Store, led *ledger.Ledger) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery(), cors.Default())

	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.Group("/v1", middleware.JWT([]byte(cfg.JWTSecret)))
	v1.GET("/ledger", getLedger(cfg, led))
	v1.GET("/pending", getPending(store))

	return g
}

func getLedger(cfg config.Config, led *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"total": led.ReadTotal(),
			"goal":  cfg.Goal,
		})
	}
}

type pendingItem struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Anonymous bool   `json:"anonymous"`
	AgeSecs   int64  `json:"age_secs"`
}

func getPending(store review.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs := store.List()
		items := make([]pendingItem, 0, len(subs))
		for _, sub := range subs {
			items = append(items, pendingItem{
				ID:        sub.ID,
				Kind:      string(sub.Kind),
				Status:    string(sub.Status),
				Amount:    sub.Amount.String(),
				Anonymous: sub.Anonymous,
				AgeSecs:   int64(time.Since(sub.CreatedAt).Seconds()),
			})
		}
		c.JSON(http.StatusOK, gin.H{"pending": items})
	}
}
