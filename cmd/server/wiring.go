package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/twmb/franz-go/pkg/kgo"

	"onboard/internal/account"
	consentservice "onboard/internal/consent/service"
	consentstore "onboard/internal/consent/store"
	"onboard/internal/financial"
	finadapters "onboard/internal/financial/adapters"
	"onboard/internal/gateway"
	"onboard/internal/gateway/providers"
	"onboard/internal/gateway/providers/httpprovider"
	"onboard/internal/gateway/stub"
	"onboard/internal/gateway/tokens"
	"onboard/internal/notify"
	"onboard/internal/objectstore"
	"onboard/internal/platform/config"
	"onboard/internal/platform/kafka"
	"onboard/internal/platform/logger"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/postgres"
	"onboard/internal/platform/redis"
	processstore "onboard/internal/process/store"
	"onboard/internal/risk"
	riskadapters "onboard/internal/risk/adapters"
	httptransport "onboard/internal/transport/http"
	"onboard/internal/verification"
	"onboard/internal/workflow"
	"onboard/pkg/domain"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/audit/publisher"
	auditmemory "onboard/pkg/platform/audit/store/memory"
	auditpostgres "onboard/pkg/platform/audit/store/postgres"
	"onboard/pkg/platform/circuit"
	"onboard/pkg/secrets"
)

const notifyPartitions = 3

// liveKinds is the contract each configured endpoint is expected to speak.
var liveKinds = map[string]providers.Kind{
	providers.IDDocumentAnalysis: providers.KindDocumentAnalysis,
	providers.IDIdentity:         providers.KindIdentity,
	providers.IDFace:             providers.KindFace,
	providers.IDLiveness:         providers.KindLiveness,
	providers.IDPrimaryFinancial: providers.KindFinancialPrimary,
	providers.IDAccountVerifier:  providers.KindAccountVerifier,
	providers.IDStatements:       providers.KindStatements,
	providers.IDEnrichment:       providers.KindEnrichment,
	providers.IDScreening:        providers.KindScreening,
	providers.IDCoreBanking:      providers.KindAccount,
	providers.IDTextGeneration:   providers.KindTextGeneration,
}

type processStore interface {
	workflow.ProcessStore
	workflow.CustomerStore
	verification.CustomerEnricher
}

type documentStore interface {
	Put(ctx context.Context, processID domain.ProcessID, purpose objectstore.Purpose, data []byte) error
	Get(ctx context.Context, processID domain.ProcessID, purpose objectstore.Purpose) ([]byte, error)
	DeleteProcess(ctx context.Context, processID domain.ProcessID) error
}

// app owns every long-lived dependency so commands can close them together.
type app struct {
	logger  *slog.Logger
	metrics *metrics.Registry
	engine  *workflow.Engine
	runner  *workflow.Runner
	reaper  *workflow.Reaper
	objects documentStore
	auditor *publisher.Publisher
	health  []httptransport.HealthCheck

	closers []func()
}

func (a *app) Close() {
	for _, c := range slices.Backward(a.closers) {
		c()
	}
}

func build(ctx context.Context, cfg config.Config) (*app, error) {
	log := logger.New(cfg.IsProduction(), cfg.LogLevel)
	reg := metrics.NewRegistry()
	a := &app{logger: log, metrics: reg}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.health = append(a.health, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})
	}
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, func() { _ = rc.Close() })
		a.health = append(a.health, httptransport.HealthCheck{Name: "redis", Check: rc.Health})
	}

	processes, consents, auditStore := stores(db)
	a.auditor = publisher.NewPublisher(auditStore, publisher.WithAsyncBuffer(1024), publisher.WithLogger(log))
	a.closers = append(a.closers, a.auditor.Close)

	if rc != nil {
		a.objects = objectstore.NewRedisStore(rc.Client, objectstore.WithTTL(cfg.Workflow.ProcessTTL))
	} else {
		a.objects = objectstore.NewInMemoryStore()
	}

	gw, err := buildGateway(ctx, cfg, rc, log, reg, a.auditor)
	if err != nil {
		a.Close()
		return nil, err
	}

	consentSvc, err := consentservice.New(consents,
		consentservice.WithLogger(log),
		consentservice.WithAuditPublisher(a.auditor),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	sources := finadapters.NewGatewaySources(gw)
	aggregator, err := financial.NewAggregator(consentSvc, sources, sources, sources, sources,
		financial.WithPoller(financial.NewPoller(cfg.Statements.PollInterval, cfg.Statements.MaxPolls)),
		financial.WithInsightRules(financial.InsightRules{
			Window:                cfg.Financial.InsightWindow,
			LowBalanceBelow:       cfg.Financial.LowBalanceBelow,
			LargeTransactionAbove: cfg.Financial.LargeTransactionAbove,
		}),
		financial.WithPremiumIncomeAbove(cfg.Financial.PremiumIncomeAbove),
		financial.WithLogger(log),
		financial.WithMetrics(financial.NewMetrics(reg.Registerer())),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	gate, err := risk.New(riskadapters.NewGatewayScreener(gw),
		risk.WithThresholds(risk.Thresholds{
			ReviewAbove:     cfg.Risk.ReviewAbove,
			RejectAtOrAbove: cfg.Risk.RejectAtOrAbove,
		}),
		risk.WithProduction(cfg.IsProduction()),
		risk.WithLogger(log),
		risk.WithMetrics(risk.NewMetrics(reg.Registerer())),
		risk.WithAuditPublisher(a.auditor),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	accounts, err := account.New(gw, account.WithLogger(log))
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier, err := buildNotifier(ctx, cfg, log, reg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if notifier.close != nil {
		a.closers = append(a.closers, notifier.close)
	}

	wfMetrics := workflow.NewMetrics(reg.Registerer())
	stages := workflow.NewStages(workflow.StageDeps{
		Customers: processes,
		Identity: verification.NewIdentityVerifier(gw, a.objects, processes,
			verification.WithIdentityLogger(log)),
		Biometric: verification.NewBiometricVerifier(gw, a.objects,
			verification.WithBiometricLogger(log),
			verification.WithThresholds(verification.BiometricThresholds{
				MinSimilarity:     cfg.Biometric.MinSimilarity,
				MinFaceConfidence: cfg.Biometric.MinFaceConfidence,
				MinSharpness:      cfg.Biometric.MinSharpness,
				MinBrightness:     cfg.Biometric.MinBrightness,
				RequireLiveness:   cfg.Biometric.RequireLiveness,
			})),
		Financial: aggregator,
		Risk:      gate,
		Account:   accounts,
	})

	a.engine, err = workflow.NewEngine(processes, stages,
		workflow.WithConsent(consentSvc),
		workflow.WithProcessTTL(cfg.Workflow.ProcessTTL),
		workflow.WithLogger(log),
		workflow.WithMetrics(wfMetrics),
		workflow.WithAuditPublisher(a.auditor),
		workflow.WithNotifier(notifier.Notifier),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner, err = workflow.NewRunner(a.engine,
		workflow.WithMaxInFlight(cfg.Workflow.MaxInFlight),
		workflow.WithQueueSize(cfg.Workflow.QueueSize),
		workflow.WithRunnerLogger(log),
		workflow.WithRunnerMetrics(wfMetrics),
		workflow.WithResume(processes, 0),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.reaper = workflow.NewReaper(processes, a.objects,
		workflow.WithPurgeInterval(cfg.Workflow.ReapInterval),
		workflow.WithReaperLogger(log),
		workflow.WithReaperMetrics(wfMetrics),
		workflow.WithReaperAudit(a.auditor),
	)
	return a, nil
}

// stores picks Postgres when a database is configured and memory otherwise.
func stores(db *sql.DB) (processStore, consentservice.Store, audit.Store) {
	if db == nil {
		return processstore.NewInMemoryStore(), consentstore.NewInMemoryStore(), auditmemory.NewInMemoryStore()
	}
	return processstore.NewPostgres(db), consentstore.NewPostgres(db), auditpostgres.New(db)
}

func buildGateway(
	ctx context.Context,
	cfg config.Config,
	rc *redis.Client,
	log *slog.Logger,
	reg *metrics.Registry,
	auditor gateway.AuditPublisher,
) (*gateway.Gateway, error) {
	var fixtures stub.Fixtures
	if cfg.Providers.StubFixtureFile != "" {
		f, err := stub.LoadFixtures(cfg.Providers.StubFixtureFile)
		if err != nil {
			return nil, err
		}
		fixtures = f
	}

	var live *providers.Registry
	var fallback *providers.Registry
	if cfg.Providers.UseStubs || cfg.Providers.StubFallback {
		stubs, err := stub.NewRegistry(stub.WithFixtures(fixtures))
		if err != nil {
			return nil, err
		}
		if cfg.Providers.UseStubs {
			live = stubs
		} else {
			fallback = stubs
		}
	}
	if live == nil {
		r, err := liveRegistry(ctx, cfg, rc, log)
		if err != nil {
			return nil, err
		}
		live = r
	}

	opts := []gateway.Option{
		gateway.WithPolicy(gateway.Policy{
			Timeout:     cfg.Providers.Timeout,
			MaxAttempts: cfg.Providers.MaxAttempts,
			BackoffBase: cfg.Providers.BackoffBase,
			BackoffMax:  cfg.Providers.BackoffMax,
		}),
		gateway.WithBreaker(
			circuit.WithFailureThreshold(cfg.Providers.BreakerFailures),
			circuit.WithCooldown(cfg.Providers.BreakerCooldown),
		),
		gateway.WithConcurrency(cfg.Providers.MaxConcurrent),
		gateway.WithProduction(cfg.IsProduction()),
		gateway.WithLogger(log),
		gateway.WithMetrics(gateway.NewMetrics(reg.Registerer())),
		gateway.WithAuditPublisher(auditor),
	}
	if fallback != nil {
		opts = append(opts, gateway.WithStubFallback(fallback))
	}
	return gateway.New(live, opts...)
}

// liveRegistry registers an HTTP client for every configured endpoint. Ids
// without an endpoint are left unregistered and fail as not found.
func liveRegistry(ctx context.Context, cfg config.Config, rc *redis.Client, log *slog.Logger) (*providers.Registry, error) {
	secretSource, err := buildSecrets(ctx, cfg.Secrets)
	if err != nil {
		return nil, err
	}
	var cache tokens.Cache
	if cfg.Providers.TokenCache == "redis" && rc != nil {
		cache = tokens.NewRedisCache(rc.Client)
	} else {
		cache = tokens.NewMemoryCache()
	}
	source := tokens.NewSource(cache, secretSource, tokens.WithLogger(log))

	reg := providers.NewRegistry()
	for _, id := range slices.Sorted(maps.Keys(cfg.Providers.Endpoints)) {
		kind, ok := liveKinds[id]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q in PROVIDER_ENDPOINTS", id)
		}
		pc := httpprovider.Config{ID: id, Kind: kind, BaseURL: cfg.Providers.Endpoints[id]}
		if kind == providers.KindStatements {
			err = reg.RegisterAsync(httpprovider.NewStatementProvider(pc, source))
		} else {
			err = reg.Register(httpprovider.NewJSONProvider(pc, source))
		}
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildSecrets(ctx context.Context, cfg config.SecretsConfig) (secrets.Source, error) {
	switch cfg.Source {
	case "", "env":
		return secrets.NewEnvSource(), nil
	case "kms":
		return secrets.NewKMSSource(ctx, cfg.KMSRegion, cfg.KMSKeyID)
	case "sealed":
		return secrets.NewSealedSource(cfg.SealedKey)
	default:
		return nil, fmt.Errorf("unknown SECRETS_SOURCE %q", cfg.Source)
	}
}

type builtNotifier struct {
	*notify.Notifier
	close func()
}

// buildNotifier publishes to Kafka when brokers are configured and logs
// otherwise.
func buildNotifier(ctx context.Context, cfg config.Config, log *slog.Logger, reg *metrics.Registry) (builtNotifier, error) {
	opts := []notify.Option{
		notify.WithLogger(log),
		notify.WithMetrics(notify.NewMetrics(reg.Registerer())),
		notify.WithBreaker(circuit.New("notify",
			circuit.WithFailureThreshold(cfg.Providers.BreakerFailures),
			circuit.WithCooldown(cfg.Providers.BreakerCooldown),
		)),
	}
	client, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return builtNotifier{}, err
	}
	if client == nil {
		return builtNotifier{Notifier: notify.NewNotifier(notify.NewLogPublisher(log), opts...)}, nil
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, notifyPartitions); err != nil {
		client.Close()
		return builtNotifier{}, err
	}
	return builtNotifier{
		Notifier: notify.NewNotifier(notify.NewKafkaPublisher(client, cfg.Kafka.Topic), opts...),
		close:    closeProducer(client),
	}, nil
}

func closeProducer(client *kgo.Client) func() {
	return func() {
		_ = client.Flush(context.Background())
		client.Close()
	}
}
