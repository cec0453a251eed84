package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	ddEcho "gopkg.in/DataDog/dd-trace-go.v1/contrib/labstack/echo.v4"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/billbridge/oracle/db"
	dbmigrations "github.com/billbridge/oracle/db/migrations"
	"github.com/billbridge/oracle/lib/logging"
	"github.com/billbridge/oracle/lib/service"
	"github.com/billbridge/oracle/lib/tokens"
	"github.com/billbridge/oracle/lib/transport"
	"github.com/billbridge/oracle/mollie"
	"github.com/billbridge/oracle/oracle"
	"github.com/billbridge/oracle/rabbitmq"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/uptrace/bun/migrate"
)

func main() {

	c := &service.Config{}

	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := logging.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}

	// Migrate the DB
	startupCtx := context.Background()
	migrator := migrate.NewMigrator(dbConn, dbmigrations.Migrations)
	err = migrator.Init(startupCtx)
	if err != nil {
		logger.Fatalf("Error initializing db migrator: %v", err)
	}
	_, err = migrator.Migrate(startupCtx)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"401"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	// The signer owns the oracle key for the lifetime of the process; the
	// config value is never read anywhere else and never logged.
	signer, err := oracle.NewSigner(c.OraclePrivateKey)
	if err != nil {
		logger.Fatalf("Error initializing oracle signer: %v", err)
	}
	logger.Infof("Oracle signer address: %s", signer.Address().Hex())

	// Init the payment provider client
	mollieCfg, err := mollie.LoadConfig()
	if err != nil {
		logger.Fatalf("Error loading payment provider config: %v", err)
	}
	mollieClient := mollie.NewClient(mollieCfg)

	// If no RABBITMQ_URI was provided we will not attempt to create a client
	// and no verification events will be published.
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri)
		if err != nil {
			logger.Fatal(err)
		}

		rabbitmqClient, err = rabbitmq.NewClient(amqpClient,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithVerificationExchange(c.RabbitMQExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}

		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
	}

	svc := &service.OracleService{
		Config:    c,
		Logger:    logger,
		Store:     db.NewVerificationStore(dbConn),
		Provider:  mollieClient,
		Signer:    signer,
		Publisher: rabbitmqClient,
	}

	//init echo server
	e := transport.InitEcho(c, logger)
	//if Datadog is configured, add datadog middleware
	if c.DatadogAgentUrl != "" {
		tracer.Start(tracer.WithAgentAddr(c.DatadogAgentUrl))
		defer tracer.Stop()
		e.Use(ddEcho.Middleware(ddEcho.WithServiceName("billbridge-oracle")))
	}

	logMw := transport.CreateLoggingMiddleware(logger)
	strictRateLimitMw := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)
	adminMw := tokens.AdminTokenMiddleware(c.AdminToken)
	transport.RegisterEndpoints(svc, e, strictRateLimitMw, adminMw, logMw)

	backGroundCtx, _ := signal.NotifyContext(context.Background(), os.Interrupt)

	//Start Prometheus server if necessary
	if svc.Config.EnablePrometheus {
		go transport.StartPrometheusEcho(logger, svc, e)
	}

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	svc.Logger.Info("Oracle exiting gracefully. Goodbye.")
}
