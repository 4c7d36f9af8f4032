package data

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/fundcomms/src/bot/components/review"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// ApprovalStream implements review.EventPublisher over a redis stream so
// other consumers (dashboards, accounting) can follow published submissions.
type ApprovalStream struct {
	rdb *redis.Client
}

func NewApprovalStream(rdb *redis.Client) *ApprovalStream {
	return &ApprovalStream{rdb: rdb}
}

func (s *ApprovalStream) PublishApproval(ev review.ApprovalEvent) error {
	if s.rdb == nil {
		return nil
	}
	_, err := s.rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: "fundcomms.approvals",
		Values: map[string]interface{}{
			"id":          ev.ID,
			"kind":        string(ev.Kind),
			"requester":   ev.RequesterID,
			"amount":      ev.Amount,
			"final_price": ev.FinalPrice,
			"total":       ev.Total,
			"anonymous":   ev.Anonymous,
		},
	}).Result()
	return err
}
