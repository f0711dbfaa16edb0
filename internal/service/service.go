package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"forgewatch/internal/ai"
	"forgewatch/internal/cache"
	"forgewatch/internal/config"
	"forgewatch/internal/database"
	"forgewatch/internal/engine"
	"forgewatch/internal/ingest"
	"forgewatch/internal/models"
	"forgewatch/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SignalService 信号引擎服务：组装存储、引擎、接入与缓存
type SignalService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client

	deviceRepo  *repository.DeviceRepository
	readingRepo *repository.ReadingRepository
	signalRepo  *repository.SignalRepository

	engine         *engine.Engine
	aiClient       *ai.Client
	ingestor       *ingest.Ingestor
	mqttClient     *ingest.MQTTClient
	consumer       *ingest.Consumer
	dashboardCache *cache.DashboardCache
}

// NewSignalService 创建信号引擎服务
func NewSignalService(cfg *config.Config, logger *zap.Logger) (*SignalService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化 Redis（仪表盘缓存）
	redisClient := cache.NewRedisClient(&cfg.Redis)
	if err := cache.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 创建 Repository
	deviceRepo := repository.NewDeviceRepository(db, logger)
	readingRepo := repository.NewReadingRepository(db, logger)
	signalRepo := repository.NewSignalRepository(db, logger)

	// AI 协作方客户端（未配置时自动降级为不可用）
	aiClient := ai.NewClient(&cfg.AI, logger)

	// 信号引擎
	eng := engine.NewEngine(readingRepo, signalRepo, deviceRepo, aiClient, logger, nil)

	// 遥测接入器
	ingestor := ingest.NewIngestor(deviceRepo, readingRepo, eng, logger, nil)

	// 仪表盘缓存
	kv := cache.NewRedisKVStore(redisClient)
	dashboardCache := cache.NewDashboardCache(kv, cfg.Engine.Cache.DashboardKeyPrefix, cfg.Engine.Cache.DashboardTTL, logger)

	s := &SignalService{
		config:         cfg,
		logger:         logger,
		db:             db,
		redisClient:    redisClient,
		deviceRepo:     deviceRepo,
		readingRepo:    readingRepo,
		signalRepo:     signalRepo,
		engine:         eng,
		aiClient:       aiClient,
		ingestor:       ingestor,
		dashboardCache: dashboardCache,
	}

	// MQTT 接入（未配置 broker 时不启动）
	if cfg.MQTT.Broker != "" {
		mqttClient, err := ingest.NewMQTTClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		s.mqttClient = mqttClient
		s.consumer = ingest.NewConsumer(&cfg.MQTT, mqttClient, ingestor, logger)
	}

	return s, nil
}

// Start 启动服务，阻塞到上下文取消
func (s *SignalService) Start(ctx context.Context) error {
	s.logger.Info("Starting signal engine service",
		zap.Bool("mqtt_enabled", s.consumer != nil),
		zap.Bool("ai_enabled", s.aiClient.Enabled()),
		zap.Int("sweep_interval_seconds", s.config.Engine.SweepInterval),
	)

	// 启动 MQTT 消费者
	if s.consumer != nil {
		go func() {
			if err := s.consumer.Start(ctx); err != nil {
				s.logger.Error("MQTT consumer exited", zap.Error(err))
			}
		}()
	}

	// 周期性扫描（轮询模式）
	if s.config.Engine.SweepInterval > 0 {
		return s.startSweepLoop(ctx)
	}

	<-ctx.Done()
	return nil
}

// Stop 停止服务并释放连接
func (s *SignalService) Stop(ctx context.Context) error {
	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Failed to stop MQTT consumer", zap.Error(err))
		}
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	s.logger.Info("Signal engine service stopped")
	return nil
}

// startSweepLoop 周期性扫描所有工厂的近期读数
func (s *SignalService) startSweepLoop(ctx context.Context) error {
	interval := time.Duration(s.config.Engine.SweepInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting periodic sweep loop",
		zap.Duration("interval", interval),
	)

	// 启动时先跑一轮
	if err := s.sweepAllFactories(ctx); err != nil {
		s.logger.Error("Failed to sweep on startup", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweepAllFactories(ctx); err != nil {
				s.logger.Error("Failed to sweep factories", zap.Error(err))
			}
		}
	}
}

// sweepAllFactories 对所有工厂各跑一次扫描
// 单个工厂失败不中断其余工厂。
func (s *SignalService) sweepAllFactories(ctx context.Context) error {
	factories, err := s.deviceRepo.ListFactories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list factories: %w", err)
	}

	successCount := 0
	errorCount := 0

	for _, factory := range factories {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		result, err := s.Sweep(ctx, engine.SweepScope{FactoryID: factory.FactoryID})
		if err != nil {
			s.logger.Error("Factory sweep failed",
				zap.String("factory_id", factory.FactoryID),
				zap.Error(err),
			)
			errorCount++
			continue
		}
		successCount++

		if result.SignalsCreated > 0 {
			s.logger.Info("Factory sweep created signals",
				zap.String("factory_id", factory.FactoryID),
				zap.Int("signals_created", result.SignalsCreated),
				zap.Int("duplicates_skipped", result.DuplicatesSkipped),
			)
		}
	}

	s.logger.Info("Completed sweeping factories",
		zap.Int("success_count", successCount),
		zap.Int("error_count", errorCount),
	)

	return nil
}

// ============================================
// 引擎操作的对外入口
// ============================================

// EvaluateReading 实时评估一条读数
func (s *SignalService) EvaluateReading(ctx context.Context, reading *models.Reading, device *models.Device) ([]models.Signal, error) {
	return s.engine.EvaluateReading(ctx, reading, device)
}

// IngestSample 接入一条遥测样本
func (s *SignalService) IngestSample(ctx context.Context, sample *ingest.TelemetrySample) (*ingest.IngestResult, error) {
	return s.ingestor.IngestSample(ctx, sample)
}

// IngestBatch 批量接入遥测样本
func (s *SignalService) IngestBatch(ctx context.Context, samples []ingest.TelemetrySample) (*ingest.BatchResult, error) {
	return s.ingestor.IngestBatch(ctx, samples)
}

// Sweep 对指定范围做一次批量扫描（配置里的窗口与上限作为默认值）
func (s *SignalService) Sweep(ctx context.Context, scope engine.SweepScope) (*engine.SweepResult, error) {
	opts := engine.SweepOptions{
		Window:               time.Duration(s.config.Engine.SweepWindowHours) * time.Hour,
		MaxReadingsPerDevice: s.config.Engine.SweepMaxReadings,
		UseAI:                s.config.Engine.UseAI,
	}
	return s.engine.Sweep(ctx, scope, opts)
}

// ReprocessBacklog 积压重处理：更大的每设备读数上限，去重避免重复告警
func (s *SignalService) ReprocessBacklog(ctx context.Context, scope engine.SweepScope, window time.Duration) (*engine.SweepResult, error) {
	opts := engine.SweepOptions{
		Window:               window,
		MaxReadingsPerDevice: s.config.Engine.BacklogMaxReadings,
		UseAI:                s.config.Engine.UseAI,
	}
	return s.engine.Sweep(ctx, scope, opts)
}

// Acknowledge 确认一个信号
func (s *SignalService) Acknowledge(ctx context.Context, signalID string) (*models.Signal, error) {
	return s.engine.Acknowledge(ctx, signalID)
}

// TransitionSignal 对信号施加一次生命周期迁移
func (s *SignalService) TransitionSignal(ctx context.Context, signalID string, to models.SignalStatus) (*models.Signal, error) {
	return s.engine.Transition(ctx, signalID, to)
}
