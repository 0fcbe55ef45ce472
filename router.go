package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cadenza-chat/cadenza/pkg/config"
	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/handler"
	"github.com/cadenza-chat/cadenza/pkg/models"
	"github.com/cadenza-chat/cadenza/pkg/service"
	"github.com/cadenza-chat/cadenza/pkg/utils"
	"github.com/cadenza-chat/cadenza/pkg/ws"

	// Register all built-in tools.
	_ "github.com/cadenza-chat/cadenza/pkg/tools/all"
)

type Server struct {
	ginEngine *gin.Engine
	upgrader  *websocket.Upgrader
	logger    *slog.Logger
	cfg       *config.AppConfig
	port      int
}

func NewServer(cfg *config.AppConfig) (*Server, error) {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow common localhost dev origins.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")

			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-User-ID")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	server := &Server{
		ginEngine: ginEngine,
		upgrader:  upgrader,
		logger:    utils.GetLogger(),
		cfg:       cfg,
	}

	if err := server.SetupRoutes(); err != nil {
		return nil, err
	}
	return server, nil
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), s.cfg.Port())
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen first; if the port is occupied return immediately.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = s.cfg.Port()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}

	s.logger.Info("server started", "addr", addr)
	return nil
}

func (s *Server) SetupRoutes() error {
	database, err := db.Open(s.cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	chatStore := service.NewChatStoreService(database)
	modelService := service.NewModelService()

	memoryService, err := service.NewMemoryService(database, &service.MemoryConfig{
		EnableVectorStore: s.cfg.VectorStorePath() != "",
		VectorStorePath:   s.cfg.VectorStorePath(),
		EmbeddingProvider: s.cfg.EmbeddingProvider(),
		EmbeddingModel:    s.cfg.EmbeddingModel(),
	})
	if err != nil {
		return fmt.Errorf("create memory service: %w", err)
	}

	appState := &ws.AppState{
		DB: database,
		Primary: &ws.Collaborators{
			ChatStore: chatStore,
			Memory:    memoryService,
		},
	}

	cleanupTable := ws.NewCleanupTable()
	connectionFactory := ws.NewConnectionFactory(appState, cleanupTable)
	presence := ws.NewPresenceStore(s.cfg.RedisAddr(), s.cfg.RedisPassword(), s.cfg.RedisDB())

	chatHandler := handler.NewChatHandler(appState)
	wsChatHandler := handler.NewWSChatHandler(s.upgrader, connectionFactory, presence)
	conversationHandler := handler.NewConversationHandler(chatStore)
	healthHandler := handler.NewHealthHandler(cleanupTable)
	eventWSHandler := event.NewWSHandler()

	apiGroup := s.ginEngine.Group("/api")
	apiGroup.Use(handler.AuthMiddleware(s.cfg))

	// Runtime info for clients to discover base URLs.
	apiGroup.GET("/runtime", func(c *gin.Context) {
		host := s.cfg.Host()
		port := s.port
		if port == 0 {
			port = s.cfg.Port()
		}
		c.JSON(http.StatusOK, models.RuntimeInfo{
			HTTPBaseURL: fmt.Sprintf("http://%s:%d", host, port),
			WSBaseURL:   fmt.Sprintf("ws://%s:%d", host, port),
			Port:        port,
		})
	})

	// Chat surfaces
	apiGroup.POST("/chat", chatHandler.HandleChat)
	apiGroup.GET("/ws", wsChatHandler.HandleChatWS)
	apiGroup.GET("/events/ws", eventWSHandler.Handle)

	// Conversation management
	conversationsGroup := apiGroup.Group("/conversations")
	{
		conversationsGroup.GET("", conversationHandler.List)
		conversationsGroup.POST("", conversationHandler.Create)
		conversationsGroup.GET(":id", conversationHandler.Get)
		conversationsGroup.PUT(":id", conversationHandler.Update)
		conversationsGroup.DELETE(":id", conversationHandler.Delete)
		conversationsGroup.GET(":id/messages", conversationHandler.Messages)
	}

	// Model management
	apiGroup.GET("/models", modelService.GetModelList)
	apiGroup.POST("/models", modelService.AddModel)
	apiGroup.PUT("/models/:id", modelService.EditModel)
	apiGroup.DELETE("/models/:id", modelService.DeleteModel)
	apiGroup.POST("/models/test", modelService.TestModelConnection)

	// Operational state
	apiGroup.GET("/health/connections", healthHandler.Connections)

	return nil
}
