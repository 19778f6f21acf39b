package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/hemalink/coordinator/internal/audit"
	"github.com/hemalink/coordinator/internal/config"
	"github.com/hemalink/coordinator/internal/coordinator"
	"github.com/hemalink/coordinator/internal/model"
	"github.com/hemalink/coordinator/internal/notify"
	"github.com/hemalink/coordinator/internal/ranking"
	"github.com/hemalink/coordinator/internal/search"
	"github.com/hemalink/coordinator/internal/status"
	"github.com/hemalink/coordinator/internal/statusfeed"
	"github.com/hemalink/coordinator/internal/store"
	"github.com/hemalink/coordinator/pkg/circuit"
	"github.com/hemalink/coordinator/pkg/messaging"
)

func main() {
	cfg := config.Load()

	rdb, err := store.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	msgClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATSURL,
		Name:           "coordinator",
		ReconnectWait:  time.Second,
		MaxReconnects:  60,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer msgClient.Close()

	recorder := audit.NewRecorder(db)
	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := recorder.EnsureSchema(schemaCtx); err != nil {
		cancelSchema()
		log.Fatalf("Failed to prepare audit schema: %v", err)
	}
	cancelSchema()

	breakers := circuit.NewBreakerGroup(circuit.Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 2,
	})

	requests := store.NewRequestStore(rdb)
	responses := store.NewResponseStore(rdb)
	locations := store.NewLocationStore(rdb)
	donors := store.NewDonorStore(rdb)

	registry := coordinator.NewRegistry(
		coordinator.Config{
			PollInterval:      cfg.PollInterval,
			CallTimeout:       cfg.CallTimeout,
			InitialRadiusKm:   cfg.InitialRadiusKm,
			RadiusIncrementKm: cfg.RadiusIncrementKm,
			MaxRadiusKm:       cfg.MaxRadiusKm,
			InitialBatch:      cfg.InitialBatch,
			ExpandBatch:       cfg.ExpandBatch,
			SearchLimit:       cfg.SearchLimit,
			InterventionAfter: cfg.InterventionAfter,
		},
		coordinator.Deps{
			Locations: locations,
			Search:    search.NewClient(cfg.SearchURL, cfg.SearchTimeout, breakers.Get("search")),
			Ranker:    ranking.New(ranking.Config{FormatCap: cfg.RankFormatCap}),
			Notifier:  notify.NewDispatcher(msgClient, responses, breakers.Get("notify")),
			Requests:  requests,
			Responses: responses,
			Status:    status.NewPublisher(msgClient, recorder),
			Messenger: donors,
			Profiles:  donors,
		},
	)
	registry.OnDone(func(sessionID string) {
		publishLifecycle(msgClient, sessionID, messaging.RunStopped)
	})

	feed := statusfeed.NewFeed(msgClient)
	if err := feed.Start(); err != nil {
		log.Fatalf("Failed to start status feed: %v", err)
	}
	wsHandler := statusfeed.NewWebSocketHandler(feed)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"nats_connected": msgClient.IsConnected(),
			"active_runs":    registry.Len(),
		})
	})

	r.POST("/api/v1/runs", func(c *gin.Context) {
		var req struct {
			SessionID string        `json:"session_id"`
			Request   model.Request `json:"request"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		providerID, requestID, err := coordinator.ParseSessionID(req.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// The session id is authoritative for routing.
		req.Request.ProviderID = providerID
		req.Request.ID = requestID
		if req.Request.Status == "" {
			req.Request.Status = model.RequestOpen
		}
		if err := req.Request.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := requests.Put(c.Request.Context(), req.Request); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		run, err := registry.Start(context.Background(), req.SessionID, req.Request)
		if err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, coordinator.ErrRunExists) {
				code = http.StatusConflict
			}
			c.JSON(code, gin.H{"error": err.Error()})
			return
		}

		publishLifecycle(msgClient, req.SessionID, messaging.RunStarted)
		c.JSON(http.StatusCreated, run.Snapshot())
	})

	r.GET("/api/v1/runs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"runs": registry.Snapshots()})
	})

	r.GET("/api/v1/runs/:session_id", func(c *gin.Context) {
		sessionID := c.Param("session_id")
		run, ok := registry.Get(sessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}

		events, err := recorder.ListByRequest(c.Request.Context(), run.ProviderID(), run.RequestID(), 50)
		if err != nil {
			log.Printf("Failed to list audit events for %s: %v", sessionID, err)
		}
		c.JSON(http.StatusOK, gin.H{"run": run.Snapshot(), "events": events})
	})

	r.DELETE("/api/v1/runs/:session_id", func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if err := registry.Stop(sessionID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
	})

	r.GET("/api/v1/runs/:session_id/stream", func(c *gin.Context) {
		sessionID := c.Param("session_id")
		providerID, requestID, err := coordinator.ParseSessionID(sessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		conn, err := wsHandler.Upgrader().Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for %s: %v", sessionID, err)
			return
		}
		wsHandler.ServeWS(c.Request.Context(), conn, providerID, requestID)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("Coordinator starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down coordinator...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	registry.StopAll()
	feed.Stop()
	if err := msgClient.Drain(); err != nil {
		log.Printf("NATS drain error: %v", err)
	}

	log.Println("Coordinator stopped")
}

func publishLifecycle(msgClient *messaging.Client, sessionID, state string) {
	providerID, requestID, err := coordinator.ParseSessionID(sessionID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := messaging.RunLifecycleEvent{
		SessionID:  sessionID,
		ProviderID: providerID,
		RequestID:  requestID,
		State:      state,
		Timestamp:  time.Now().UTC(),
	}
	if err := msgClient.Publish(ctx, messaging.SubjectRunLifecycle, event); err != nil {
		log.Printf("Failed to publish run lifecycle event: %v", err)
	}
}
