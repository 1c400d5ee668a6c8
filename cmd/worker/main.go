package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/taxmitra/taxmitra/internal/ai"
	"github.com/taxmitra/taxmitra/internal/analysis"
	"github.com/taxmitra/taxmitra/internal/config"
	"github.com/taxmitra/taxmitra/internal/conversation"
	"github.com/taxmitra/taxmitra/internal/db"
	"github.com/taxmitra/taxmitra/internal/facts"
	"github.com/taxmitra/taxmitra/internal/oracle"
	"github.com/taxmitra/taxmitra/internal/store/redisstore"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

// analysisCache is the slice of the redis store the worker needs: a
// fresh analysis supersedes whatever the API has cached for the user.
type analysisCache interface {
	InvalidateLatestAnalysis(ctx context.Context, userID uint64) error
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	// Provider registry (route by configured provider)
	reg := ai.NewRegistry()
	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.GeminiModel
		}
		return ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, m), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	provider, err := reg.Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	repo := analysis.NewRepo(gdb)
	convRepo := conversation.NewRepo(gdb)
	svc := analysis.NewService(repo, facts.NewRepo(gdb), oracle.NewStrategist(provider))

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// declaration must match the publisher's queue topology
	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	})
	if err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	//  strict concurrency control
	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, svc, repo, convRepo, rds, m.JobID); err != nil {
					log.Printf("worker=%d job %s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleJob(ctx context.Context, svc *analysis.Service, repo *analysis.Repo, convRepo *conversation.Repo, cache analysisCache, jobID string) error {
	jobStart := time.Now()

	_ = repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	t0 := time.Now()
	a, err := svc.Generate(ctx, j.UserID, j.SessionID)
	genCost := time.Since(t0)

	if err != nil {
		_ = repo.MarkJobFailed(ctx, jobID, err.Error())
		log.Printf("job_failed job=%s gen=%s total=%s err=%v", jobID, genCost, time.Since(jobStart), err)
		return err
	}

	if err := repo.MarkJobSucceeded(ctx, jobID, a.ID); err != nil {
		log.Printf("job_mark_failed job=%s gen=%s total=%s err=%v", jobID, genCost, time.Since(jobStart), err)
		return err
	}

	// the producing session is done once its analysis exists
	if err := convRepo.DeactivateSession(ctx, j.SessionID); err != nil {
		log.Printf("job=%s session deactivate failed session=%s err=%v", jobID, j.SessionID, err)
	}

	// drop the cached latest analysis so the next read sees this one
	if err := cache.InvalidateLatestAnalysis(ctx, j.UserID); err != nil {
		log.Printf("job=%s cache invalidate failed user=%d err=%v", jobID, j.UserID, err)
	}

	if total := time.Since(jobStart); total > 2*time.Second {
		log.Printf("job_timing job=%s gen=%s total=%s", jobID, genCost, total)
	}

	return nil
}
