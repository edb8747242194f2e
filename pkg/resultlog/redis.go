// Package resultlog публикует итог прохода конвейера в Redis.
package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-stepflow/pkg/config"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
)

// Статусы прохода
const (
	StatusSuccess = "success"
	StatusPartial = "partial" // часть шагов завершилась ошибкой
	StatusFailed  = "failed"
)

// RunResult представляет состояние прохода, публикуемое в Redis
// после его завершения (успешного или с ошибкой).
//
// Redis-ключи:
//
//	SET  stepflow:pipeline:<name>:state  <JSON>  EX <ttl>  - для GET-запросов оркестратора
//	PUB  stepflow:pipeline:<name>                          - для event-driven маршрутизации
type RunResult struct {
	PipelineName string    `json:"pipeline_name"`
	ResultName   string    `json:"result_name"`
	RunID        string    `json:"run_id,omitempty"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMs   int64     `json:"duration_ms"`
	Steps        int       `json:"steps"`
	FailedSteps  []int     `json:"failed_steps,omitempty"`
	RowsOut      int       `json:"rows_out"` // строк в результате последнего шага
	Error        *string   `json:"error,omitempty"`
	StepErrors   []string  `json:"step_errors,omitempty"`
}

// NewRunResult строит итог по отчету прохода. report может быть nil,
// если проход не начался.
func NewRunResult(name string, report *pipeline.RunReport, runErr error) RunResult {
	result := RunResult{PipelineName: name, Status: StatusSuccess}
	if report != nil {
		result.RunID = report.ID.String()
		result.StartedAt = report.StartTime
		result.FinishedAt = report.EndTime
		result.DurationMs = report.Duration.Milliseconds()
		result.Steps = len(report.Steps)
		for _, s := range report.Steps {
			if s.Err != nil {
				result.FailedSteps = append(result.FailedSteps, s.Number)
				result.StepErrors = append(result.StepErrors, s.Err.Error())
			}
		}
		if n := len(report.Steps); n > 0 && report.Steps[n-1].Err == nil {
			result.RowsOut = report.Steps[n-1].Rows
		}
		if len(result.FailedSteps) > 0 {
			result.Status = StatusPartial
		}
	}
	if runErr != nil {
		result.Status = StatusFailed
		errStr := runErr.Error()
		result.Error = &errStr
	}
	return result
}

// StateKey возвращает ключ последнего состояния
func StateKey(name string) string {
	return fmt.Sprintf("stepflow:pipeline:%s:state", name)
}

// Channel возвращает канал событий
func Channel(name string) string {
	return fmt.Sprintf("stepflow:pipeline:%s", name)
}

// RedisPublisher публикует итог прохода в Redis
type RedisPublisher struct {
	client *redis.Client
	config config.ResultLogConfig
}

// NewRedisPublisher создает новый Redis publisher на основе конфигурации
func NewRedisPublisher(cfg config.ResultLogConfig) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisPublisher{client: client, config: cfg}
}

// Publish публикует итог прохода:
//   - SET stepflow:pipeline:<name>:state <JSON> EX <ttl>  → для опроса (polling)
//   - PUBLISH stepflow:pipeline:<name> <JSON>              → для подписки (pub/sub)
//
// Вызывается независимо от результата прохода.
func (p *RedisPublisher) Publish(ctx context.Context, pipelineName string, report *pipeline.RunReport, runErr error) error {
	result := NewRunResult(pipelineName, report, runErr)
	result.ResultName = p.config.Name

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := time.Duration(p.config.TTL) * time.Second

	// SET ключ с TTL - оркестратор может GET для получения последнего состояния
	if err := p.client.Set(ctx, StateKey(p.config.Name), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	// PUBLISH событие - оркестратор может SUBSCRIBE для event-driven маршрутизации
	if err := p.client.Publish(ctx, Channel(p.config.Name), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}

	return nil
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
