package warehouseservice

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
)

// WarehouseRepository define o contrato que o Serviço de Armazéns espera da camada de Persistência.
type WarehouseRepository interface {
	CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (domain.Warehouse, error)
	GetWarehouseByID(ctx context.Context, id string) (domain.Warehouse, error)
	GetAllWarehouses(ctx context.Context) ([]domain.Warehouse, error)
	UpdateWarehouse(ctx context.Context, warehouse domain.Warehouse) (domain.Warehouse, error)
	DeleteWarehouse(ctx context.Context, id string) error
}

// Service implementa a lógica de negócio de armazéns.
type Service struct {
	repo   WarehouseRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Armazéns.
func NewService(repo WarehouseRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateWarehouse cria um novo armazém após validações de negócio.
func (s *Service) CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (domain.Warehouse, error) {
	s.logger.Debug("Iniciando criação de armazém no serviço.", map[string]interface{}{"name": warehouse.Name, "code": warehouse.Code})

	if err := s.validate(warehouse); err != nil {
		s.logger.Warn("Falha na validação do armazém.", map[string]interface{}{"name": warehouse.Name, "error": err.Error()})
		return domain.Warehouse{}, err
	}

	if warehouse.ID == "" {
		warehouse.ID = uuid.New().String()
	}
	warehouse.Active = true

	createdWarehouse, err := s.repo.CreateWarehouse(ctx, warehouse)
	if err != nil {
		s.logger.Error("Falha ao criar armazém no repositório.", err)
		return domain.Warehouse{}, err
	}

	s.logger.Info("Armazém criado com sucesso.", map[string]interface{}{"id": createdWarehouse.ID, "name": createdWarehouse.Name})
	return createdWarehouse, nil
}

// GetWarehouseByID busca um armazém pelo ID após validações de formato.
func (s *Service) GetWarehouseByID(ctx context.Context, id string) (domain.Warehouse, error) {
	s.logger.Debug("Iniciando busca de armazém por ID no serviço.", map[string]interface{}{"id": id})

	if _, err := uuid.Parse(id); err != nil {
		s.logger.Warn("ID de armazém inválido fornecido.", map[string]interface{}{"id": id, "error": err.Error()})
		return domain.Warehouse{}, apperror.NewValidationError("O ID do armazém deve ser um UUID válido.")
	}

	warehouse, err := s.repo.GetWarehouseByID(ctx, id)
	if err != nil {
		s.logger.Error("Falha ao buscar armazém no repositório.", err)
		return domain.Warehouse{}, err // Erros do repositório já são NotFoundError ou DBError
	}

	return warehouse, nil
}

// GetAllWarehouses busca todos os armazéns.
func (s *Service) GetAllWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	s.logger.Debug("Iniciando busca de todos os armazéns no serviço.", nil)

	warehouses, err := s.repo.GetAllWarehouses(ctx)
	if err != nil {
		s.logger.Error("Falha ao buscar todos os armazéns no repositório.", err)
		return nil, err
	}

	s.logger.Info("Todos os armazéns encontrados com sucesso.", map[string]interface{}{"count": len(warehouses)})
	return warehouses, nil
}

// UpdateWarehouse atualiza um armazém existente.
func (s *Service) UpdateWarehouse(ctx context.Context, warehouse domain.Warehouse) (domain.Warehouse, error) {
	s.logger.Debug("Iniciando atualização de armazém no serviço.", map[string]interface{}{"id": warehouse.ID, "name": warehouse.Name})

	if _, err := uuid.Parse(warehouse.ID); err != nil {
		s.logger.Warn("ID de armazém inválido fornecido para atualização.", map[string]interface{}{"id": warehouse.ID, "error": err.Error()})
		return domain.Warehouse{}, apperror.NewValidationError("O ID do armazém deve ser um UUID válido.")
	}

	if err := s.validate(warehouse); err != nil {
		s.logger.Warn("Falha na validação do armazém para atualização.", map[string]interface{}{"name": warehouse.Name, "error": err.Error()})
		return domain.Warehouse{}, err
	}

	updatedWarehouse, err := s.repo.UpdateWarehouse(ctx, warehouse)
	if err != nil {
		s.logger.Error("Falha ao atualizar armazém no repositório.", err)
		return domain.Warehouse{}, err
	}

	s.logger.Info("Armazém atualizado com sucesso.", map[string]interface{}{"id": updatedWarehouse.ID, "name": updatedWarehouse.Name})
	return updatedWarehouse, nil
}

// DeleteWarehouse desativa um armazém (exclusão lógica).
func (s *Service) DeleteWarehouse(ctx context.Context, id string) error {
	s.logger.Debug("Iniciando exclusão de armazém no serviço.", map[string]interface{}{"id": id})

	if _, err := uuid.Parse(id); err != nil {
		s.logger.Warn("ID de armazém inválido fornecido para exclusão.", map[string]interface{}{"id": id, "error": err.Error()})
		return apperror.NewValidationError("O ID do armazém deve ser um UUID válido.")
	}

	if err := s.repo.DeleteWarehouse(ctx, id); err != nil {
		s.logger.Error("Falha ao desativar armazém no repositório.", err)
		return err
	}

	s.logger.Info("Armazém desativado com sucesso.", map[string]interface{}{"id": id})
	return nil
}

// validate aplica as regras estruturais do armazém.
func (s *Service) validate(warehouse domain.Warehouse) error {
	if strings.TrimSpace(warehouse.Name) == "" {
		return apperror.NewValidationError("O nome do armazém não pode ser vazio.")
	}
	if len(warehouse.Name) < 3 || len(warehouse.Name) > 100 {
		return apperror.NewValidationError("O nome do armazém deve ter entre 3 e 100 caracteres.")
	}
	if strings.TrimSpace(warehouse.Code) == "" {
		return apperror.NewValidationError("O código do armazém não pode ser vazio.")
	}

	switch warehouse.Type {
	case domain.WarehouseMain, domain.WarehouseDivision, domain.WarehouseProvincial:
	default:
		return apperror.NewValidationError("O tipo do armazém deve ser 'main', 'division' ou 'provincial'.")
	}

	if warehouse.ManagerID != nil {
		if _, err := uuid.Parse(*warehouse.ManagerID); err != nil {
			return apperror.NewValidationError("O ID do gestor deve ser um UUID válido.")
		}
	}

	return nil
}
