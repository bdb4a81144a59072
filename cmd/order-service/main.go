package main

import (
	"context"
	"flag"
	"time"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/locker"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/application/rules"
	"orderflow/internal/service/order/application/saga"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
	"orderflow/internal/service/order/interfaces"
)

const serviceName = "order-service"

func main() {
	configPath := flag.String("config", "", "path to the service config file")
	flag.Parse()

	bootstrap.StartService(bootstrap.AppInfo{
		ConfigPath: *configPath,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Config
			tracer := otel.Tracer(serviceName)

			repo, err := infrastructure.NewGormOrderRepository(cfg.Infra.MySQLDSN)
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to open order store")
			}

			cache := redis.NewClient(cfg.Infra.RedisAddr)
			client := httpclient.NewClient(tracer)
			writer := mq.NewWriter(cfg.Infra.KafkaBrokers, cfg.Order.NotificationTopic)

			notifier := adapter.NewNotificationKafkaAdapter(writer)
			payments := adapter.NewPaymentHTTPAdapter(client, cfg.Order.Downstream.PaymentURL)
			inventory := adapter.NewInventoryHTTPAdapter(client, cfg.Order.Downstream.InventoryURL)
			shipping := adapter.NewShippingHTTPAdapter(client, cfg.Order.Downstream.ShippingURL)
			directory := adapter.NewDirectoryAdapter(client, cache, cfg.Order.Downstream.CustomerURL, cfg.Order.Downstream.ProductURL)
			shipment := adapter.NewShipmentWSAdapter(cfg.Order.ShipmentStatusURL)

			// Orders are serialized per order ID. With ZooKeeper configured the
			// lock spans all replicas, otherwise it degrades to process-local.
			var locks locker.Locker = locker.NewKeyedMutex()
			var zkLocker *locker.ZKLocker
			if len(cfg.Infra.ZooKeeper) > 0 {
				zkLocker, err = locker.NewZKLocker(cfg.Infra.ZooKeeper, 5*time.Second)
				if err != nil {
					logger.Logger().Fatal().Err(err).Msg("failed to connect to zookeeper")
				}
				locks = zkLocker
			}

			engine, err := rules.NewEngine(rules.Merge(cfg.Order.BusinessRules))
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to compile business rules")
			}

			validator := application.NewValidationService(directory, directory, repo, engine, tracer)

			effects := application.NewEntryEffects(notifier, directory, inventory, payments, shipment)
			effects.Carrier = cfg.Order.Carrier
			effects.LowStockThreshold = cfg.Order.LowStockThreshold

			service := application.NewOrderService(
				repo,
				domain.NewStateMachine(),
				validator,
				effects,
				payments,
				inventory,
				shipping,
				notifier,
				saga.NewRunner(tracer),
				locks,
				tracer,
				cfg.Order.PaymentTimeout.Std(),
				cfg.Order.PaymentDue.Std(),
			)

			interfaces.NewOrderHandler(service).RegisterRoutes(appCtx.Mux)

			shutdownables = []func(ctx context.Context){
				func(ctx context.Context) {
					if err := notifier.Close(); err != nil {
						logger.Logger().Error().Err(err).Msg("error closing kafka writer")
					}
				},
				func(ctx context.Context) {
					if err := shipment.Close(); err != nil {
						logger.Logger().Error().Err(err).Msg("error closing shipment status connection")
					}
				},
				func(ctx context.Context) {
					if err := cache.Close(); err != nil {
						logger.Logger().Error().Err(err).Msg("error closing redis client")
					}
				},
				func(ctx context.Context) {
					if zkLocker != nil {
						zkLocker.Close()
					}
				},
			}
		},
		OnShutdown: func(ctx context.Context) {
			for _, fn := range shutdownables {
				fn(ctx)
			}
		},
	})
}

// shutdownables collects the resources opened during registration so the
// shutdown hook can close them. Entries are independent of each other.
var shutdownables []func(ctx context.Context)
