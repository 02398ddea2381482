package events

// Kinds of domain events emitted by the platform.
const (
	KindOrderCreated       = "order.created"
	KindOrderPaid          = "order.paid"
	KindOrderCancelled     = "order.cancelled"
	KindOrderShipped       = "order.shipped"
	KindBatchStatusChanged = "batch.status_changed"
	KindPaymentUnmatched   = "payment.unmatched"
)
