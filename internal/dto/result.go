package dto

import "dealerhub/internal/domain"

type OrderSnapshot struct {
	Order           domain.Order
	Contracts       []domain.Contract
	Payments        []domain.Payment
	AllowedStatuses []string
}

type PaymentResult struct {
	Payment     domain.Payment
	Order       domain.Order
	RedirectURL string
}

type CallbackResult struct {
	Payment  *domain.Payment
	Order    *domain.Order
	Replayed bool
}

type SignResult struct {
	Contract domain.Contract
	Order    domain.Order
}

type DeliveryResult struct {
	Distribution domain.Distribution
	Inventory    []domain.Inventory
}
