package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skillbridgeai/skillbridge/internal/authapi"
	"github.com/skillbridgeai/skillbridge/internal/authpg"
	"github.com/skillbridgeai/skillbridge/internal/web"
	"github.com/skillbridgeai/skillbridge/pkg/sessionvalidator"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildGoogleTokenValidator = func(ctx context.Context) (authapi.GoogleTokenValidator, error) {
	return authapi.NewGoogleTokenValidator(ctx)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "skillbridge-server",
		Short:   "Demo auth backend with Google Sign-In exchange, OTP and role verification, and JWT sessions",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8000", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for session JWT")
	rootCmd.Flags().Duration("session_ttl", 60*time.Minute, "Session token TTL")
	rootCmd.Flags().String("admin_passcode", "", "Passcode required by /auth/verify-role")
	rootCmd.Flags().String("recruiter_access_key", "", "Access key checked by /auth/send-otp")
	rootCmd.Flags().String("google_web_client_id", "", "Google Web OAuth Client ID; empty disables provider verification")
	rootCmd.Flags().Duration("otp_ttl", 10*time.Minute, "One-time code lifetime")
	rootCmd.Flags().Int("otp_max_attempts", 5, "Verification attempts allowed per one-time code")
	rootCmd.Flags().String("database_url", "", "Database URL for users (postgres:// or sqlite://; leave empty for in-memory store)")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("jwt_signing_key", rootCmd.Flags().Lookup("jwt_signing_key"))
	_ = viper.BindPFlag("session_ttl", rootCmd.Flags().Lookup("session_ttl"))
	_ = viper.BindPFlag("admin_passcode", rootCmd.Flags().Lookup("admin_passcode"))
	_ = viper.BindPFlag("recruiter_access_key", rootCmd.Flags().Lookup("recruiter_access_key"))
	_ = viper.BindPFlag("google_web_client_id", rootCmd.Flags().Lookup("google_web_client_id"))
	_ = viper.BindPFlag("otp_ttl", rootCmd.Flags().Lookup("otp_ttl"))
	_ = viper.BindPFlag("otp_max_attempts", rootCmd.Flags().Lookup("otp_max_attempts"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database_url"))
	_ = viper.BindPFlag("enable_cors", rootCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", rootCmd.Flags().Lookup("cors_allowed_origins"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeMissingAdminPasscode    = "config.missing_admin_passcode"
	configCodeMissingRecruiterKey     = "config.missing_recruiter_access_key"
	configCodeInvalidSessionTTL       = "config.invalid_session_ttl"
	configCodeInvalidOTPTTL           = "config.invalid_otp_ttl"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeGoogleValidatorInit     = "config.google_validator_init"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (authapi.ServerConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return authapi.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	adminPasscode := viper.GetString("admin_passcode")
	if adminPasscode == "" {
		return authapi.ServerConfig{}, configError(configCodeMissingAdminPasscode, "admin_passcode must be provided")
	}

	recruiterAccessKey := viper.GetString("recruiter_access_key")
	if recruiterAccessKey == "" {
		return authapi.ServerConfig{}, configError(configCodeMissingRecruiterKey, "recruiter_access_key must be provided")
	}

	sessionTTL := viper.GetDuration("session_ttl")
	if sessionTTL <= 0 {
		return authapi.ServerConfig{}, configError(configCodeInvalidSessionTTL, "session_ttl must be greater than zero")
	}

	otpTTL := viper.GetDuration("otp_ttl")
	if otpTTL <= 0 {
		return authapi.ServerConfig{}, configError(configCodeInvalidOTPTTL, "otp_ttl must be greater than zero")
	}

	return authapi.ServerConfig{
		JWTSigningKey:      []byte(jwtSigningKey),
		JWTIssuer:          "skillbridge-auth",
		SessionTTL:         sessionTTL,
		AdminPasscode:      adminPasscode,
		RecruiterAccessKey: recruiterAccessKey,
		GoogleWebClientID:  viper.GetString("google_web_client_id"),
		OTPTTL:             otpTTL,
		OTPMaxAttempts:     viper.GetInt("otp_max_attempts"),
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authapi.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	databaseURL := viper.GetString("database_url")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	userStore, storeErr := buildUserStore(commandContext, databaseURL, logger)
	if storeErr != nil {
		return storeErr
	}

	otpStore := authapi.NewMemoryOTPStore(serverConfig.OTPTTL, serverConfig.OTPMaxAttempts)
	metricsRecorder := authapi.NewCounterMetrics()

	var googleValidator authapi.GoogleTokenValidator
	if serverConfig.GoogleWebClientID != "" {
		validator, validatorErr := buildGoogleTokenValidator(commandContext)
		if validatorErr != nil {
			return fmt.Errorf("%s: %w", configCodeGoogleValidatorInit, validatorErr)
		}
		googleValidator = validator
	}

	authapi.MountAuthRoutes(router, serverConfig, authapi.Dependencies{
		Users:           userStore,
		Codes:           otpStore,
		Mailer:          authapi.NewLogMailer(logger),
		GoogleValidator: googleValidator,
		Metrics:         metricsRecorder,
		Logger:          logger,
	})

	sessionValidator, validatorErr := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: serverConfig.JWTSigningKey,
		Issuer:     serverConfig.JWTIssuer,
	})
	if validatorErr != nil {
		return validatorErr
	}

	protected := router.Group("/api")
	protected.Use(authapi.RequireSession(sessionValidator))
	protected.GET("/me", web.HandleWhoAmI(userStore, logger))

	adminOnly := protected.Group("/admin")
	adminOnly.Use(authapi.RequireRole("admin"))
	adminOnly.GET("/metrics", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, metricsRecorder.Snapshot())
	})

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func buildUserStore(ctx context.Context, databaseURL string, logger *zap.Logger) (authapi.UserStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if databaseURL == "" {
		logger.Info("using in-memory user store")
		return authapi.NewMemoryUserStore(), nil
	}
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		pool, poolErr := authpg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, poolErr
		}
		if schemaErr := authpg.EnsureSchema(ctx, pool); schemaErr != nil {
			return nil, schemaErr
		}
		logger.Info("using persistent user store", zap.String("driver", "postgres"))
		return authpg.NewPostgresUserStore(pool), nil
	}
	store, storeErr := authapi.NewDatabaseUserStore(ctx, databaseURL)
	if storeErr != nil {
		return nil, storeErr
	}
	logger.Info("using persistent user store", zap.String("driver", store.Driver()))
	return store, nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
