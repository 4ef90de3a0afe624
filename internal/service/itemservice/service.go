package itemservice

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
)

// ItemRepository define o contrato que o Serviço de Itens espera da camada de Persistência.
type ItemRepository interface {
	Create(ctx context.Context, item domain.Item) (domain.Item, error)
	GetByID(ctx context.Context, id string) (domain.Item, error)
	List(ctx context.Context) ([]domain.Item, error)
}

// Service implementa a lógica de negócio do catálogo de itens.
type Service struct {
	repo   ItemRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Itens.
func NewService(repo ItemRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create registra um novo item no catálogo.
func (s *Service) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	s.logger.Debug("Iniciando criação de item no serviço.", map[string]interface{}{"name": item.Name})

	if strings.TrimSpace(item.Name) == "" {
		return domain.Item{}, apperror.NewValidationError("O nome do item não pode ser vazio.")
	}
	switch item.Type {
	case domain.ItemDurable, domain.ItemConsumable:
	default:
		return domain.Item{}, apperror.NewValidationError("O tipo do item deve ser 'durable' ou 'consumable'.")
	}
	// Número de série só faz sentido em bens duráveis.
	if item.Type == domain.ItemConsumable && item.Serial != nil {
		return domain.Item{}, apperror.NewValidationError("Itens consumíveis não possuem número de série.")
	}

	now := time.Now().UTC()
	item.ID = uuid.New().String()
	item.Status = domain.ItemAvailable
	item.HolderID = nil
	item.CreatedAt = now
	item.UpdatedAt = now

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		s.logger.Error("Falha ao criar item no repositório.", err)
		return domain.Item{}, err
	}

	s.logger.Info("Item criado com sucesso.", map[string]interface{}{"id": created.ID, "name": created.Name})
	return created, nil
}

// GetByID busca um item pelo ID.
func (s *Service) GetByID(ctx context.Context, id string) (domain.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Item{}, apperror.NewValidationError("O ID do item deve ser um UUID válido.")
	}

	return s.repo.GetByID(ctx, id)
}

// List busca todos os itens do catálogo.
func (s *Service) List(ctx context.Context) ([]domain.Item, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Falha ao listar itens no repositório.", err)
		return nil, err
	}
	return items, nil
}
