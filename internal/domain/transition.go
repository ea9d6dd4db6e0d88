package domain

import (
	"slices"

	apperrors "dealerhub/internal/errors"
)

// KnownStatus reports whether status belongs to the catalog of kind.
func KnownStatus(kind Kind, status string) bool {
	table, ok := transitionCatalog[kind]
	if !ok {
		return false
	}
	_, ok = table[status]
	return ok
}

// CanTransition reports whether the catalog has an edge from -> to for kind.
// A status never transitions to itself.
func CanTransition(kind Kind, from, to string) bool {
	table, ok := transitionCatalog[kind]
	if !ok {
		return false
	}
	next, ok := table[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// ValidateTransition returns an ILLEGAL_TRANSITION error naming the pair when the
// edge is not in the catalog, including when either status is unknown.
func ValidateTransition(kind Kind, from, to string) error {
	if !CanTransition(kind, from, to) {
		return apperrors.NewIllegalTransitionError(string(kind), from, to)
	}
	return nil
}

// AllowedTargets lists the legal next statuses of kind from the given status.
func AllowedTargets(kind Kind, from string) []string {
	next := transitionCatalog[kind][from]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

func IsTerminal(kind Kind, status string) bool {
	return KnownStatus(kind, status) && len(transitionCatalog[kind][status]) == 0
}

func (s OrderStatus) CanReceiveContract() bool {
	return slices.Contains(contractEligibleOrderStatuses, s)
}

func (s OrderStatus) CanReceiveDeposit() bool {
	return slices.Contains(depositEligibleOrderStatuses, s)
}

func (s OrderStatus) CanReceiveFinalPayment() bool {
	return slices.Contains(finalPaymentEligibleOrderStatuses, s)
}

func (s ContractStatus) Editable() bool {
	return slices.Contains(editableContractStatuses, s)
}

func (s DistributionStatus) Open() bool {
	return slices.Contains(openDistributionStatuses, s)
}
