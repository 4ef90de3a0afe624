package router

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"assetstock/internal/api/history"
	"assetstock/internal/api/item"
	"assetstock/internal/api/notification"
	"assetstock/internal/api/overdue"
	"assetstock/internal/api/request"
	"assetstock/internal/api/stock"
	"assetstock/internal/api/user"
	"assetstock/internal/api/warehouse"
	"assetstock/internal/domain"
	"assetstock/internal/pkg/middleware"
)

// Handlers agrupa todos os handlers já inicializados por injeção de dependências.
type Handlers struct {
	User         *user.Handler
	Warehouse    *warehouse.Handler
	Item         *item.Handler
	Stock        *stock.Handler
	Request      *request.Handler
	Overdue      *overdue.Handler
	Notification *notification.Handler
	History      *history.Handler
}

// NewRouter configura e retorna o roteador HTTP principal.
// As rotas protegidas passam pelo middleware de autenticação JWT; as de
// escrita administrativa também pelo middleware de permissão. O endpoint de
// cron usa segredo compartilhado próprio e fica fora da cadeia de JWT.
func NewRouter(h Handlers, tokenSvc middleware.TokenService, rateLimit func(http.Handler) http.Handler) http.Handler {

	// Usamos o ServeMux padrão do net/http para roteamento
	mux := http.NewServeMux()

	auth := middleware.NewAuthMiddleware(tokenSvc)
	staffOnly := middleware.PermissionMiddleware(domain.RoleAdmin, domain.RoleApprover)
	adminOnly := middleware.PermissionMiddleware(domain.RoleAdmin)

	// --- Health Check ---
	mux.HandleFunc("/ping", PingHandler)

	// --- Documentação (Swagger) ---
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// --- Autenticação (rotas públicas) ---
	mux.HandleFunc("/v1/register", h.User.RegisterUserHandler)
	mux.HandleFunc("/v1/login", h.User.LoginUserHandler)
	mux.HandleFunc("/v1/me", auth(h.User.MeHandler))

	// --- Armazéns ---
	mux.HandleFunc("/v1/warehouses", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			staffOnly(h.Warehouse.CreateWarehouseHandler)(w, r)
			return
		}
		h.Warehouse.GetAllWarehousesHandler(w, r)
	}))
	mux.HandleFunc("/v1/warehouses/", auth(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Warehouse.GetWarehouseByIDHandler(w, r)
		case http.MethodPut:
			staffOnly(h.Warehouse.UpdateWarehouseHandler)(w, r)
		case http.MethodDelete:
			adminOnly(h.Warehouse.DeleteWarehouseHandler)(w, r)
		default:
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		}
	}))

	// --- Catálogo de Itens ---
	mux.HandleFunc("/v1/items", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			staffOnly(h.Item.ItemsHandler)(w, r)
			return
		}
		h.Item.ItemsHandler(w, r)
	}))
	mux.HandleFunc("/v1/items/", auth(h.Item.GetItemByIDHandler))

	// --- Estoque ---
	mux.HandleFunc("/v1/stock/adjust", auth(staffOnly(h.Stock.AdjustStockHandler)))
	mux.HandleFunc("/v1/stock/transfer", auth(staffOnly(h.Stock.TransferStockHandler)))
	mux.HandleFunc("/v1/stock/level", auth(h.Stock.GetStockLevelHandler))
	mux.HandleFunc("/v1/stock/transactions", auth(h.Stock.ListTransactionsHandler))
	mux.HandleFunc("/v1/stock/min", auth(staffOnly(h.Stock.SetMinStockHandler)))
	mux.HandleFunc("/v1/stock/verify", auth(staffOnly(h.Stock.VerifyLedgerHandler)))

	// --- Requisições ---
	mux.HandleFunc("/v1/requests", auth(h.Request.RequestsHandler))
	mux.HandleFunc("/v1/requests/", auth(h.Request.RequestByIDHandler))

	// --- Notificações ---
	mux.HandleFunc("/v1/notifications", auth(h.Notification.ListUnreadHandler))
	mux.HandleFunc("/v1/notifications/count", auth(h.Notification.CountUnreadHandler))
	mux.HandleFunc("/v1/notifications/low-stock-check", auth(adminOnly(h.Notification.LowStockCheckHandler)))
	mux.HandleFunc("/v1/notifications/", auth(h.Notification.MarkReadHandler))

	// --- Auditoria ---
	mux.HandleFunc("/v1/history", auth(adminOnly(h.History.ListHistoryHandler)))

	// --- Cron (segredo compartilhado, fora do JWT) ---
	mux.HandleFunc("/v1/cron/check-overdue", h.Overdue.CheckOverdueHandler)

	if rateLimit != nil {
		return rateLimit(mux)
	}

	return mux
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
