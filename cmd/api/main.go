package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"tutorlink/internal/adapter/api"
	"tutorlink/internal/adapter/api/handler"
	apimiddleware "tutorlink/internal/adapter/api/middleware"
	"tutorlink/internal/adapter/api/router"
	"tutorlink/internal/adapter/repository"
	domainrepo "tutorlink/internal/domain/repository"
	"tutorlink/internal/infrastructure/auth"
	"tutorlink/internal/infrastructure/firebase"
	"tutorlink/internal/infrastructure/ratelimit"
	"tutorlink/internal/infrastructure/websocket"
	"tutorlink/internal/usecase"
	"tutorlink/pkg/config"
)

type stores struct {
	chats    domainrepo.ChatRepository
	messages domainrepo.MessageRepository
	users    domainrepo.UserRepository
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var firebaseApp *fbapp.App
	if cfg.StoreDriver == config.StoreFirestore || cfg.AuthMode == config.AuthFirebase {
		opt, err := credentials(cfg)
		if err != nil {
			log.Fatalf("Failed to load Firebase credentials: %v", err)
		}
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	}

	st, err := openStores(ctx, cfg, firebaseApp)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.close()

	verifier, closeVerifier, err := newVerifier(ctx, cfg, firebaseApp)
	if err != nil {
		log.Fatalf("Failed to initialize %s token verification: %v", cfg.AuthMode, err)
	}
	defer closeVerifier()

	limiter := ratelimit.NewRateLimiter()
	limiter.StartCleanupRoutine(ctx)

	registry := websocket.NewRegistry()
	gateway := websocket.NewGateway(registry, verifier, st.chats, st.messages, websocket.Options{
		SendBuffer: cfg.WSSendBuffer,
		Limiter:    limiter,
	})

	chatUseCase := usecase.NewChatUseCase(st.chats, st.messages, st.users, registry, limiter)
	handler.Setup(chatUseCase, gateway, cfg.AllowedOrigins)

	if tokens, ok := verifier.(*auth.DevTokens); ok && cfg.IsDevelopment() {
		log.Printf("Dev token endpoint enabled at POST /dev/token")
		handler.SetupDevTokenHandler(tokens)
	}

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)

	router.Setup(e, authMiddleware, limiter)
	router.SetupDevRouter(e)

	go func() {
		log.Printf("Starting server on port %s (store=%s, auth=%s)...", cfg.ServerPort, cfg.StoreDriver, cfg.AuthMode)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

func credentials(cfg *config.Config) (option.ClientOption, error) {
	if cfg.FirebaseServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON)), nil
	}

	if _, err := os.Stat(cfg.FirebaseServiceAccountPath); err != nil {
		return nil, err
	}

	log.Printf("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
	return option.WithCredentialsFile(cfg.FirebaseServiceAccountPath), nil
}

func openStores(ctx context.Context, cfg *config.Config, app *fbapp.App) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		return &stores{
			chats:    repository.NewFirestoreChatRepository(client),
			messages: repository.NewFirestoreMessageRepository(client),
			users:    repository.NewFirestoreUserRepository(client),
			close:    func() { closeFirestore(client) },
		}, nil

	case config.StoreMongo:
		db, err := repository.NewMongoDB(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return &stores{
			chats:    repository.NewMongoChatRepository(db),
			messages: repository.NewMongoMessageRepository(db),
			users:    repository.NewMongoUserRepository(db),
			close: func() {
				if err := db.Client().Disconnect(context.Background()); err != nil {
					log.Printf("MongoDB disconnect failed: %v", err)
				}
			},
		}, nil

	case config.StoreMemory:
		log.Printf("Using in-memory store; data is lost on restart")
		store := repository.NewMemoryStore()
		return &stores{
			chats:    repository.NewMemoryChatRepository(store),
			messages: repository.NewMemoryMessageRepository(store),
			users:    repository.NewMemoryUserRepository(store),
			close:    func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func closeFirestore(client *firestore.Client) {
	if err := client.Close(); err != nil {
		log.Printf("Firestore close failed: %v", err)
	}
}

func newVerifier(ctx context.Context, cfg *config.Config, app *fbapp.App) (auth.TokenVerifier, func(), error) {
	switch cfg.AuthMode {
	case config.AuthJWKS:
		verifier, err := auth.NewJWKSVerifier(cfg.JWKSURL, cfg.TokenIssuer, cfg.TokenAudience)
		if err != nil {
			return nil, nil, err
		}
		return verifier, verifier.Close, nil

	case config.AuthDev:
		log.Printf("WARNING: accepting self-issued dev tokens")
		return auth.NewDevTokens(cfg.DevTokenSecret, cfg.DevTokenTTL), func() {}, nil

	case config.AuthFirebase:
		authClient, err := app.Auth(ctx)
		if err != nil {
			return nil, nil, err
		}
		return firebase.NewFirebaseAuthClient(authClient), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
	}
}
