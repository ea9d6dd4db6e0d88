package domain

// Kind names an entity whose status is governed by a transition table.
type Kind string

const (
	KindOrder        Kind = "order"
	KindContract     Kind = "contract"
	KindPayment      Kind = "payment"
	KindDistribution Kind = "distribution"
)

type OrderStatus string

const (
	OrderStatusDraftQuotation       OrderStatus = "draft_quotation"
	OrderStatusReadyForContract     OrderStatus = "ready_for_contract"
	OrderStatusDeposited            OrderStatus = "deposited"
	OrderStatusSigned               OrderStatus = "signed"
	OrderStatusAwaitingVehicle      OrderStatus = "awaiting_vehicle"
	OrderStatusPendingDelivery      OrderStatus = "pending_delivery"
	OrderStatusReadyForFinalPayment OrderStatus = "ready_for_final_payment"
	OrderStatusPaymentCompleted     OrderStatus = "payment_completed"
	OrderStatusCancelled            OrderStatus = "cancelled"
)

type ContractStatus string

const (
	ContractStatusDraft       ContractStatus = "draft"
	ContractStatusPendingSign ContractStatus = "pending_sign"
	ContractStatusSigned      ContractStatus = "signed"
	ContractStatusCancelled   ContractStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type DistributionStatus string

const (
	DistributionStatusPending   DistributionStatus = "pending"
	DistributionStatusConfirmed DistributionStatus = "confirmed"
	DistributionStatusActive    DistributionStatus = "active"
	DistributionStatusInTransit DistributionStatus = "in_transit"
	DistributionStatusDelayed   DistributionStatus = "delayed"
	DistributionStatusDelivered DistributionStatus = "delivered"
	DistributionStatusCompleted DistributionStatus = "completed"
	DistributionStatusCancelled DistributionStatus = "cancelled"
)

type InventoryStatus string

const (
	InventoryStatusInStock  InventoryStatus = "in_stock"
	InventoryStatusReserved InventoryStatus = "reserved"
	InventoryStatusSold     InventoryStatus = "sold"
)

// Every status of a kind must appear as a key, terminal ones with an empty list.
var transitionCatalog = map[Kind]map[string][]string{
	KindOrder: {
		string(OrderStatusDraftQuotation): {
			string(OrderStatusReadyForContract),
			string(OrderStatusDeposited),
			string(OrderStatusCancelled),
		},
		string(OrderStatusReadyForContract): {
			string(OrderStatusDeposited),
			string(OrderStatusSigned),
			string(OrderStatusCancelled),
		},
		string(OrderStatusDeposited): {
			string(OrderStatusSigned),
			string(OrderStatusCancelled),
		},
		string(OrderStatusSigned): {
			string(OrderStatusAwaitingVehicle),
			string(OrderStatusPaymentCompleted),
			string(OrderStatusCancelled),
		},
		string(OrderStatusAwaitingVehicle): {
			string(OrderStatusPendingDelivery),
			string(OrderStatusCancelled),
		},
		string(OrderStatusPendingDelivery): {
			string(OrderStatusReadyForFinalPayment),
			string(OrderStatusCancelled),
		},
		string(OrderStatusReadyForFinalPayment): {
			string(OrderStatusPaymentCompleted),
			string(OrderStatusCancelled),
		},
		string(OrderStatusPaymentCompleted): {},
		string(OrderStatusCancelled):        {},
	},
	KindContract: {
		string(ContractStatusDraft): {
			string(ContractStatusPendingSign),
			string(ContractStatusSigned),
			string(ContractStatusCancelled),
		},
		string(ContractStatusPendingSign): {
			string(ContractStatusSigned),
			string(ContractStatusCancelled),
		},
		string(ContractStatusSigned):    {},
		string(ContractStatusCancelled): {},
	},
	KindPayment: {
		string(PaymentStatusPending): {
			string(PaymentStatusCompleted),
			string(PaymentStatusFailed),
		},
		string(PaymentStatusCompleted): {},
		string(PaymentStatusFailed):    {},
	},
	KindDistribution: {
		string(DistributionStatusPending): {
			string(DistributionStatusInTransit),
			string(DistributionStatusDelayed),
			string(DistributionStatusCancelled),
		},
		string(DistributionStatusConfirmed): {
			string(DistributionStatusInTransit),
			string(DistributionStatusDelayed),
			string(DistributionStatusCancelled),
		},
		string(DistributionStatusActive): {
			string(DistributionStatusInTransit),
			string(DistributionStatusDelayed),
			string(DistributionStatusCancelled),
		},
		string(DistributionStatusInTransit): {
			string(DistributionStatusDelayed),
			string(DistributionStatusCancelled),
			string(DistributionStatusDelivered),
		},
		string(DistributionStatusDelayed): {
			string(DistributionStatusInTransit),
			string(DistributionStatusCancelled),
		},
		string(DistributionStatusDelivered): {},
		string(DistributionStatusCompleted): {},
		string(DistributionStatusCancelled): {},
	},
}

// Contracts in these statuses still accept edits, signing and cancellation.
var editableContractStatuses = []ContractStatus{
	ContractStatusDraft,
	ContractStatusPendingSign,
}

// Orders in these statuses may receive a contract. There is no bare "quotation"
// status; draft quotations must be deposited or approved first.
var contractEligibleOrderStatuses = []OrderStatus{
	OrderStatusDeposited,
	OrderStatusReadyForContract,
}

var depositEligibleOrderStatuses = []OrderStatus{
	OrderStatusDraftQuotation,
	OrderStatusReadyForContract,
}

var finalPaymentEligibleOrderStatuses = []OrderStatus{
	OrderStatusSigned,
	OrderStatusReadyForFinalPayment,
}

// Distribution statuses that still hold their inventory reservations.
var openDistributionStatuses = []DistributionStatus{
	DistributionStatusPending,
	DistributionStatusConfirmed,
	DistributionStatusActive,
	DistributionStatusInTransit,
	DistributionStatusDelayed,
}
