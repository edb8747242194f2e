package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-stepflow/pkg/config"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

func runReport(t *testing.T) *pipeline.RunReport {
	t.Helper()
	store := table.NewStore()
	store.Put(table.NewBuilder("orders").AddInteger("id").AddInteger("amount").
		Row(1, 10).Row(2, 20).Row(3, 30).Build())

	p := pipeline.New()
	p.Add(&steps.Sort{Table: "missing", Columns: []string{"amount"}})
	p.Add(&steps.Filter{Table: "orders", Column: "amount", Operator: ">", Value: "15"})
	report, err := p.Run(context.Background(), store)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return report
}

func TestPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(ctx, Channel("ORDERS_V1"))
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	pub := NewRedisPublisher(config.ResultLogConfig{Type: "redis", Address: mr.Addr(), Name: "ORDERS_V1", TTL: 3600})
	defer pub.Close()
	if err := pub.Publish(ctx, "orders-report", runReport(t), nil); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	raw, err := mr.Get(StateKey("ORDERS_V1"))
	if err != nil {
		t.Fatalf("State key not set: %v", err)
	}
	var state RunResult
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if state.Status != StatusPartial || state.Steps != 2 || len(state.FailedSteps) != 1 || state.FailedSteps[0] != 1 {
		t.Errorf("Unexpected state: %+v", state)
	}
	if state.RowsOut != 2 || state.ResultName != "ORDERS_V1" || state.PipelineName != "orders-report" {
		t.Errorf("Unexpected state: %+v", state)
	}
	if ttl := mr.TTL(StateKey("ORDERS_V1")); ttl != time.Hour {
		t.Errorf("Expected TTL 1h, got %v", ttl)
	}

	select {
	case msg := <-ps.Channel():
		if msg.Payload != raw {
			t.Errorf("Published payload differs from state:\n%s\n%s", msg.Payload, raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No event published")
	}
}

func TestNewRunResult(t *testing.T) {
	ok := NewRunResult("p", &pipeline.RunReport{}, nil)
	if ok.Status != StatusSuccess || ok.Error != nil {
		t.Errorf("Expected success, got %+v", ok)
	}

	failed := NewRunResult("p", nil, errors.New("configuration error: input"))
	if failed.Status != StatusFailed || failed.Error == nil || *failed.Error != "configuration error: input" {
		t.Errorf("Expected failed, got %+v", failed)
	}
}

func TestPublish_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	pub := NewRedisPublisher(config.ResultLogConfig{Type: "redis", Address: addr, Name: "X", TTL: 60})
	defer pub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, "p", nil, nil); err == nil {
		t.Error("Expected error when redis is unavailable")
	}
}
