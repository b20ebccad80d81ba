package http

import (
	"context"
	"net/http"
	"os"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/adapters/signal"
	"github.com/vivadesk/examrelay/internal/app/orch"
	"github.com/vivadesk/examrelay/internal/config"
)

const sessionName = "ExamRelaySession"

// ClientTokenMiddleware gives every browser a stable token kept in the cookie
// session. The WS controller uses it as the default user id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(signal.ClientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			s.Set(signal.ClientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = []string{"Content-Type", "Origin", "Accept"}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	return cfg
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, stores Stores) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	if err := os.MkdirAll(cfg.StaticPath, 0o755); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("create uploads dir")
	}
	r.Static("/uploads", cfg.StaticPath)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Exam System API & Signaling Server Running")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(o.Rooms())})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client_token", c.GetString(signal.ClientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	rooms := NewRoomController(o)
	api.GET("/rooms", rooms.ListRooms)
	api.GET("/rooms/:roomID/members", rooms.ListMembers)

	exams := NewExamController(stores)
	api.GET("/question-papers/:id", exams.GetQuestionPaper)
	api.GET("/batches/:id", exams.GetBatch)
	api.GET("/batches/:id/question-paper", exams.GetBatchQuestionPaper)
	api.GET("/batches/:id/grading-records", exams.ListBatchRecords)
	api.POST("/grading-records", exams.CreateGradingRecord)
	api.GET("/grading-records/:id", exams.GetGradingRecord)

	return r
}
