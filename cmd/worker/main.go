package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/cvlinkhq/cvlink/adapters/dns"
	"github.com/cvlinkhq/cvlink/adapters/event"
	"github.com/cvlinkhq/cvlink/adapters/persistence"
	analyticsUC "github.com/cvlinkhq/cvlink/internal/application/usecase/analytics"
	domainUC "github.com/cvlinkhq/cvlink/internal/application/usecase/domainverify"
	"github.com/cvlinkhq/cvlink/internal/config"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

func main() {
	fmt.Println("Starting CVLink Worker...")

	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: cannot load config: %v", err)
	}

	appLogger := logger.NewZapLogger(cfg.App.Env)

	// Database
	dbPool, err := persistence.NewPostgresPool(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: cannot connect Postgres: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := persistence.NewRedisClient(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: cannot connect Redis: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	profileRepo := persistence.NewPostgresProfileRepo(dbPool, appLogger)
	analyticsRepo := persistence.NewPostgresAnalyticsRepo(dbPool)
	verificationRepo := persistence.NewPostgresDomainVerificationRepo(dbPool, appLogger)
	profileCache := persistence.NewProfileCache(redisClient, cfg, appLogger)

	// Worker Use Cases
	processEventsUC := analyticsUC.NewProcessEventsUseCase(analyticsRepo, appLogger)
	recheckUC := domainUC.NewRecheckDomainUseCase(
		verificationRepo,
		profileRepo,
		dns.NewCNAMEResolver(cfg.Domains.CheckTimeout),
		dns.NewCertAuthorityClient(cfg.Domains.CertAuthorityURL, cfg.Domains.CheckTimeout),
		profileCache,
		cfg.Domains.MaxCheckFailures,
		appLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeTopic(ctx, cfg, event.TopicViewEvents, "view-processor-group", func(msgCtx context.Context, value []byte) error {
			var payload event.ViewEventPayload
			if err := json.Unmarshal(value, &payload); err != nil {
				return err
			}
			return processEventsUC.ExecuteView(msgCtx, payload)
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeTopic(ctx, cfg, event.TopicClickEvents, "click-processor-group", func(msgCtx context.Context, value []byte) error {
			var payload event.ClickEventPayload
			if err := json.Unmarshal(value, &payload); err != nil {
				return err
			}
			return processEventsUC.ExecuteClick(msgCtx, payload)
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeTopic(ctx, cfg, event.TopicDownloadEvents, "download-processor-group", func(msgCtx context.Context, value []byte) error {
			var payload event.DownloadEventPayload
			if err := json.Unmarshal(value, &payload); err != nil {
				return err
			}
			return processEventsUC.ExecuteDownload(msgCtx, payload)
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRecheckLoop(ctx, cfg, recheckUC)
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, waiting for workers...")
	wg.Wait()
}

// eventReader is the slice of kafka.Reader the consume loop needs. Fetch and
// commit stay separate so a processing failure leaves the offset in place.
type eventReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// consumeTopic runs the fetch/process/commit loop for one topic. A failed
// process leaves the message uncommitted so the group retries it; a message
// that cannot even be decoded is committed and dropped.
func consumeTopic(ctx context.Context, cfg config.Config, topic, groupID string, handle func(context.Context, []byte) error) {
	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer consumer.Close()

	log.Printf("Worker listening on topic '%s'...", topic)
	consumeLoop(ctx, consumer, topic, handle)
}

func consumeLoop(ctx context.Context, consumer eventReader, topic string, handle func(context.Context, []byte) error) {
	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("ERROR: Failed to read message from Kafka: %v", err)
			continue
		}

		if err := handle(ctx, msg.Value); err != nil {
			if isDecodeError(err) {
				log.Printf("ERROR: Failed to decode event on '%s': %v. Skipping.", topic, err)
				commitMessage(consumer, msg)
				continue
			}
			log.Printf("ERROR: Failed to process event from '%s': %v", topic, err)
			continue
		}

		commitMessage(consumer, msg)
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func commitMessage(consumer eventReader, msg kafka.Message) {
	if err := consumer.CommitMessages(context.Background(), msg); err != nil {
		log.Printf("ERROR: Failed to commit message: %v", err)
	}
}

// runRecheckLoop sweeps due domain verifications on a fixed interval.
func runRecheckLoop(ctx context.Context, cfg config.Config, recheckUC *domainUC.RecheckDomainUseCase) {
	ticker := time.NewTicker(cfg.Domains.RecheckInterval)
	defer ticker.Stop()

	log.Printf("Domain recheck loop running every %s", cfg.Domains.RecheckInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-cfg.Domains.RecheckInterval)
			output, err := recheckUC.ExecuteDue(ctx, domainUC.RecheckDueInput{
				Cutoff: cutoff,
				Limit:  cfg.Domains.RecheckBatchSize,
			})
			if err != nil {
				log.Printf("ERROR: Domain recheck sweep failed: %v", err)
				continue
			}
			if output.Checked > 0 {
				log.Printf("Domain recheck sweep checked %d records", output.Checked)
			}
		}
	}
}
