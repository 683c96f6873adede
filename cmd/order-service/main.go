package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/config"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/registry"
	"orderflow/internal/pkg/tracing"
	"orderflow/internal/resilience"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
	"orderflow/internal/service/order/interfaces"
)

const serviceName = "order-service"

// main 是应用的组装根：创建并组装所有依赖，然后启动应用。
func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 1. 追踪
	tp, err := tracing.InitTracerProvider(serviceName, cfg.Jaeger.Endpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}
	tracer := otel.Tracer(serviceName)

	// 2. 出站基础设施
	db, err := infrastructure.NewMySQL(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	kafkaWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
	notifier := adapter.NewNotificationKafkaAdapter(kafkaWriter)
	defer notifier.Close()

	// 3. 库存服务地址：接入 Nacos 时做服务发现，否则直连配置地址
	endpoint := adapter.StaticEndpoint(cfg.Inventory.URL)
	var nacosClient *registry.Client
	if cfg.Nacos.Enabled {
		nacosClient, err = registry.NewClient(cfg.Nacos.Addrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			log.Fatalf("failed to connect nacos: %v", err)
		}
		inventoryService := cfg.Inventory.Service
		endpoint = func() (string, error) { return nacosClient.Resolve(inventoryService) }
	}

	httpClient := httpclient.NewClient(tracer)
	inventory := adapter.NewInventoryHTTPAdapter(httpClient, endpoint, cfg.Inventory.Path)

	// 4. 弹性策略，熔断状态在并发请求间共享
	policy := resilience.NewPolicy("inventory", toResilienceConfig(cfg.Resilience["inventory"]))

	// 5. 仓储：GORM 外面套一层 Redis cache-aside
	var repo domain.OrderRepository = infrastructure.NewGormOrderRepository(db)
	repo = infrastructure.NewCachedOrderRepository(repo, rdb, cfg.Redis.CacheTTL.Std())

	orderService := application.NewOrderService(repo, inventory, notifier, policy, tracer)

	// 6. HTTP 接口
	mux := http.NewServeMux()
	interfaces.NewOrderHandler(orderService).RegisterRoutes(mux)
	apiServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: mux}

	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.MetricsPort), Handler: metricsMux}

	// 7. 服务注册（可选）
	var registeredIP string
	if nacosClient != nil {
		registeredIP, err = registry.OutboundIP()
		if err != nil {
			log.Fatalf("failed to get outbound IP: %v", err)
		}
		if err := nacosClient.Register(serviceName, registeredIP, cfg.Server.Port); err != nil {
			log.Fatalf("failed to register with nacos: %v", err)
		}
	}

	// 8. 启动与优雅关停：先注销实例，再停服务器，最后把缓冲中的 trace 发完
	app := bootstrap.New(serviceName)
	if nacosClient != nil {
		app.OnShutdown("nacos deregister", func(ctx context.Context) error {
			return nacosClient.Deregister(serviceName, registeredIP, cfg.Server.Port)
		})
	}
	app.AddServer("api", apiServer)
	app.AddServer("metrics", metricsServer)
	app.OnShutdown("tracer provider", tp.Shutdown)

	if err := app.Run(10 * time.Second); err != nil {
		log.Printf("server error: %v", err)
	}
}

func toResilienceConfig(pc config.PolicyConfig) resilience.Config {
	return resilience.Config{
		MaxAttempts:          pc.MaxAttempts,
		WaitDuration:         pc.WaitDuration.Std(),
		AttemptTimeout:       pc.AttemptTimeout.Std(),
		FailureRateThreshold: pc.FailureRateThreshold,
		SlidingWindowSize:    pc.SlidingWindowSize,
		MinimumCalls:         pc.MinimumCalls,
		OpenStateDuration:    pc.OpenStateDuration.Std(),
		HalfOpenMaxCalls:     pc.HalfOpenMaxCalls,
	}
}
