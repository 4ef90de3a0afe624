package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Nossos pacotes de infraestrutura e utilitários
	"assetstock/config"
	"assetstock/internal/pkg/audit"
	"assetstock/internal/pkg/cache"
	"assetstock/internal/pkg/database"
	"assetstock/internal/pkg/logger"
	"assetstock/internal/pkg/middleware"
	"assetstock/internal/pkg/token"

	// Camadas da aplicação para Injeção de Dependências
	"assetstock/internal/api/history"
	"assetstock/internal/api/item"
	"assetstock/internal/api/notification"
	"assetstock/internal/api/overdue"
	"assetstock/internal/api/request"
	"assetstock/internal/api/router"
	"assetstock/internal/api/stock"
	"assetstock/internal/api/user"
	"assetstock/internal/api/warehouse"
	"assetstock/internal/domain"
	"assetstock/internal/repository/itemrepo"
	"assetstock/internal/repository/notificationrepo"
	"assetstock/internal/repository/requestrepo"
	"assetstock/internal/repository/stockrepo"
	"assetstock/internal/repository/userrepo"
	"assetstock/internal/repository/warehouserepo"
	"assetstock/internal/service/itemservice"
	"assetstock/internal/service/notifyservice"
	"assetstock/internal/service/overdueservice"
	"assetstock/internal/service/requestservice"
	"assetstock/internal/service/stockservice"
	"assetstock/internal/service/transferservice"
	"assetstock/internal/service/userservice"
	"assetstock/internal/service/warehouseservice"
)

func main() {
	// 1. Configuração e Inicialização
	stdlog.Println("⚡ Inicializando serviço AssetStock...")
	// O godotenv.Load() procura por um arquivo chamado .env na raiz.
	if err := godotenv.Load(); err != nil {
		stdlog.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Configurações carregadas.", nil)

	// 2. Conexão com Recursos de Infraestrutura

	// A. Banco de Dados (PostgreSQL)
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	// B. Cache (Redis)
	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	log.Info("Conexão Redis estabelecida.", nil)

	// C. Executor de transações compartilhado
	txRunner := database.NewTxRunner(db, cfg.DBTimeout)

	// D. Serviço de Tokens (JWT)
	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	log.Debug("Serviço de Tokens JWT inicializado.", nil)

	// E. Auditoria
	auditor := audit.NewDBRecorder(db, cfg.DBTimeout, log)

	settings := domain.Settings{
		BorrowLimitDays: cfg.BorrowLimitDays,
		CheckInterval:   cfg.CheckInterval,
	}

	// 3. INJEÇÃO DE DEPENDÊNCIAS (Montagem da Clean Architecture)
	// Ordem: Repository -> Service -> Handler

	// A. Repositórios (Camada de Acesso a Dados)
	stockRepo := stockrepo.NewStockRepository(db, cacheClient, cfg.DBTimeout, log)
	warehouseRepo := warehouserepo.NewWarehouseRepository(db, cfg.DBTimeout, log)
	itemRepo := itemrepo.NewItemRepository(db, cfg.DBTimeout, log)
	requestRepo := requestrepo.NewRequestRepository(db, cfg.DBTimeout, log)
	notificationRepo := notificationrepo.NewNotificationRepository(db, cfg.DBTimeout, log)
	userRepo := userrepo.NewUserRepository(db, cfg.DBTimeout, log)
	log.Debug("Repositórios inicializados.", nil)

	// B. Serviços (Camada de Lógica de Negócio)
	stockSvc := stockservice.NewService(stockRepo, auditor, log)
	transferSvc := transferservice.NewService(stockRepo, txRunner, auditor, log)
	notifySvc := notifyservice.NewService(notificationRepo, stockRepo, warehouseRepo, txRunner, log)
	requestSvc := requestservice.NewService(requestRepo, stockRepo, itemRepo, transferSvc, notifySvc, txRunner, auditor, settings, log)
	overdueSvc := overdueservice.NewService(requestRepo, notifySvc, txRunner, auditor, log)
	warehouseSvc := warehouseservice.NewService(warehouseRepo, log)
	itemSvc := itemservice.NewService(itemRepo, log)
	userSvc := userservice.NewService(userRepo, tokenSvc)
	log.Debug("Serviços inicializados.", nil)

	// C. Handlers (Camada de Apresentação)
	handlers := router.Handlers{
		User:         user.NewHandler(userSvc, log),
		Warehouse:    warehouse.NewHandler(warehouseSvc, log),
		Item:         item.NewHandler(itemSvc, log),
		Stock:        stock.NewHandler(stockSvc, transferSvc, log),
		Request:      request.NewHandler(requestSvc, log),
		Overdue:      overdue.NewHandler(overdueSvc, cfg.CronSecret, log),
		Notification: notification.NewHandler(notifySvc, log),
		History:      history.NewHandler(auditor, log),
	}
	log.Debug("Handlers inicializados.", nil)

	// 4. Configuração e Início do Roteador/Servidor
	rateLimit := middleware.RateLimiter(cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod)
	r := router.NewRouter(handlers, tokenSvc, rateLimit)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Varredura periódica de atrasos e estoque baixo
	scanCtx, stopScans := context.WithCancel(context.Background())
	defer stopScans()
	go runPeriodicScans(scanCtx, overdueSvc, notifySvc, settings.CheckInterval, log)

	// 6. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor AssetStock ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)
	stopScans()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}

// runPeriodicScans dispara as varreduras de atraso e de estoque baixo no
// intervalo configurado, até o contexto ser cancelado. As varreduras são
// idempotentes, então o endpoint de cron externo pode coexistir com o ticker.
func runPeriodicScans(ctx context.Context, overdueSvc *overdueservice.Service, notifySvc *notifyservice.Service, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := overdueSvc.Scan(ctx, time.Now().UTC()); err != nil {
				log.Error("Varredura periódica de atrasos falhou.", err)
			}
			if _, err := notifySvc.CheckLowStock(ctx); err != nil {
				log.Error("Varredura periódica de estoque baixo falhou.", err)
			}
		}
	}
}
