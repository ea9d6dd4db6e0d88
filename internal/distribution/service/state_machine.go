package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/store"
)

var initialStatuses = []domain.DistributionStatus{
	domain.DistributionStatusPending,
	domain.DistributionStatusConfirmed,
	domain.DistributionStatusActive,
}

type StateMachine struct {
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewStateMachine(logger *zap.Logger) *StateMachine {
	return &StateMachine{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Create opens a shipment and reserves its inventory units. A unit may belong
// to at most one open distribution.
func (m *StateMachine) Create(ctx context.Context, tx store.Tx, s dto.Shipment) (*domain.Distribution, error) {
	inventoryIDs := dedupe(s.InventoryIDs)

	movement := domain.MovementType(s.MovementType)
	if movement == "" {
		movement = domain.MovementCentralToDealer
		if s.FromDealerID != nil {
			movement = domain.MovementDealerToDealer
		}
	}
	status := domain.DistributionStatus(s.InitialStatus)
	if status == "" {
		status = domain.DistributionStatusPending
	}

	if err := validateShipment(s, inventoryIDs, movement, status); err != nil {
		return nil, err
	}

	for _, id := range inventoryIDs {
		unit, err := tx.Inventory().FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := checkUnitSource(unit, s.FromDealerID); err != nil {
			return nil, err
		}
	}

	now := m.now()
	distribution := &domain.Distribution{
		ID:           m.newID(),
		FromDealerID: s.FromDealerID,
		ToDealerID:   s.ToDealerID,
		InventoryIDs: inventoryIDs,
		Status:       status,
		MovementType: movement,
		Note:         s.Note,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Distributions().Insert(ctx, distribution); err != nil {
		return nil, err
	}
	if err := tx.Distributions().Reserve(ctx, distribution.ID, inventoryIDs); err != nil {
		m.logger.Warn("inventory already reserved",
			zap.String("distributionId", distribution.ID), zap.Strings("inventoryIds", inventoryIDs), zap.Error(err))
		return nil, err
	}

	m.logger.Info("distribution created",
		zap.String("distributionId", distribution.ID),
		zap.String("toDealerId", distribution.ToDealerID),
		zap.String("movementType", string(movement)),
		zap.String("status", string(status)),
		zap.Int("unitCount", len(inventoryIDs)),
	)
	return distribution, nil
}

func validateShipment(s dto.Shipment, inventoryIDs []string, movement domain.MovementType, status domain.DistributionStatus) error {
	var details []apperrors.ValidationDetail

	if s.ToDealerID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "toDealerId", Message: "toDealerId is required"})
	}
	if len(inventoryIDs) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "inventoryIds", Message: "inventoryIds must not be empty"})
	}
	if !movement.Valid() {
		details = append(details, apperrors.ValidationDetail{Field: "movementType", Message: fmt.Sprintf("unknown movement type %q", movement)})
	}
	if movement == domain.MovementDealerToDealer && s.FromDealerID == nil {
		details = append(details, apperrors.ValidationDetail{Field: "fromDealerId", Message: "fromDealerId is required for dealer_to_dealer"})
	}
	if movement == domain.MovementCentralToDealer && s.FromDealerID != nil {
		details = append(details, apperrors.ValidationDetail{Field: "fromDealerId", Message: "fromDealerId must be empty for central_to_dealer"})
	}
	if s.FromDealerID != nil && *s.FromDealerID == s.ToDealerID {
		details = append(details, apperrors.ValidationDetail{Field: "toDealerId", Message: "toDealerId must differ from fromDealerId"})
	}
	if !slices.Contains(initialStatuses, status) {
		details = append(details, apperrors.ValidationDetail{Field: "status", Message: fmt.Sprintf("a distribution cannot start as %q", status)})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func checkUnitSource(unit *domain.Inventory, from *string) error {
	field := "inventoryIds"
	if unit.Status == domain.InventoryStatusSold {
		return apperrors.NewValidationError("validation failed",
			apperrors.ValidationDetail{Field: field, Message: fmt.Sprintf("inventory %s is sold", unit.ID)})
	}

	switch {
	case from == nil && unit.DealerID != nil:
		return apperrors.NewValidationError("validation failed",
			apperrors.ValidationDetail{Field: field, Message: fmt.Sprintf("inventory %s is not in the central warehouse", unit.ID)})
	case from != nil && (unit.DealerID == nil || *unit.DealerID != *from):
		return apperrors.NewValidationError("validation failed",
			apperrors.ValidationDetail{Field: field, Message: fmt.Sprintf("inventory %s is not held by dealer %s", unit.ID, *from)})
	}
	return nil
}

// Transition applies a status update. Delivery goes through Complete so the
// inventory moves with it; cancelling releases the reserved units.
func (m *StateMachine) Transition(ctx context.Context, tx store.Tx, id string, to domain.DistributionStatus) (*domain.Distribution, error) {
	distribution, err := tx.Distributions().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := distribution.Status
	if err := domain.ValidateTransition(domain.KindDistribution, string(from), string(to)); err != nil {
		return nil, err
	}
	if to == domain.DistributionStatusDelivered {
		return nil, apperrors.NewWorkflowError(apperrors.CodeIllegalTransition,
			"distribution cannot move from %q to %q by status update; confirm the delivery instead", from, to)
	}

	if to == domain.DistributionStatusCancelled {
		if err := tx.Distributions().Release(ctx, distribution.ID); err != nil {
			return nil, err
		}
	}

	if err := m.update(ctx, tx, distribution, to); err != nil {
		return nil, err
	}
	return distribution, nil
}

// Complete confirms delivery of an in-transit shipment: every unit moves to
// the destination dealer and the reservations are released.
func (m *StateMachine) Complete(ctx context.Context, tx store.Tx, id string) (*domain.Distribution, []domain.Inventory, error) {
	distribution, err := tx.Distributions().FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if err := domain.ValidateTransition(domain.KindDistribution, string(distribution.Status), string(domain.DistributionStatusDelivered)); err != nil {
		return nil, nil, err
	}

	now := m.now()
	moved := make([]domain.Inventory, 0, len(distribution.InventoryIDs))
	for _, inventoryID := range distribution.InventoryIDs {
		unit, err := tx.Inventory().FindByID(ctx, inventoryID)
		if err != nil {
			return nil, nil, err
		}
		to := distribution.ToDealerID
		unit.DealerID = &to
		unit.Status = domain.InventoryStatusInStock
		unit.UpdatedAt = now
		if err := tx.Inventory().Update(ctx, unit); err != nil {
			return nil, nil, err
		}
		moved = append(moved, *unit)
	}

	if err := tx.Distributions().Release(ctx, distribution.ID); err != nil {
		return nil, nil, err
	}

	distribution.DeliveredAt = &now
	if err := m.update(ctx, tx, distribution, domain.DistributionStatusDelivered); err != nil {
		return nil, nil, err
	}
	return distribution, moved, nil
}

func (m *StateMachine) update(ctx context.Context, tx store.Tx, distribution *domain.Distribution, to domain.DistributionStatus) error {
	from := distribution.Status
	distribution.Status = to
	distribution.UpdatedAt = m.now()
	if err := tx.Distributions().Update(ctx, distribution); err != nil {
		return err
	}

	m.logger.Info("distribution transitioned",
		zap.String("distributionId", distribution.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
