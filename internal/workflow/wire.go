package workflow

import (
	"go.uber.org/zap"

	"dealerhub/internal/config"
	contractservice "dealerhub/internal/contract/service"
	distributionservice "dealerhub/internal/distribution/service"
	orderservice "dealerhub/internal/order/service"
	"dealerhub/internal/payment/gateway"
	paymentservice "dealerhub/internal/payment/service"
	"dealerhub/internal/store"
	"dealerhub/internal/workflow/controller"
	"dealerhub/internal/workflow/usecase"
)

type Controllers struct {
	Orders        *controller.OrderController
	Contracts     *controller.ContractController
	Payments      *controller.PaymentController
	Distributions *controller.DistributionController
}

func NewModule(tx store.Manager, cfg *config.Config, callbackLock usecase.CallbackLock, logger *zap.Logger) *Controllers {
	vnpay := gateway.NewVNPay(cfg.VNPay)

	orders := orderservice.NewLifecycle(logger)
	contracts := contractservice.NewLifecycle(orders, logger)
	payments := paymentservice.NewCoordinator(orders, vnpay, logger)
	distributions := distributionservice.NewStateMachine(logger)

	orchestrator := usecase.NewOrchestrator(
		tx,
		orders,
		contracts,
		payments,
		distributions,
		callbackLock,
		logger,
		cfg.Workflow.MaxRetryAttempts,
	)

	return &Controllers{
		Orders:        controller.NewOrderController(orchestrator, logger),
		Contracts:     controller.NewContractController(orchestrator, logger),
		Payments:      controller.NewPaymentController(orchestrator, vnpay, logger),
		Distributions: controller.NewDistributionController(orchestrator, logger),
	}
}
