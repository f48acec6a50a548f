package enum

// ── Group A: State machines ──

const (
	OrderStatusPending          = "pending"
	OrderStatusAwaitingAssembly = "awaiting_assembly"
	OrderStatusCaptured         = "captured"
)

// Fulfillment statuses (CHECK constrained in DB, paid_orders only).
const (
	FulfillmentNew        = "new"
	FulfillmentInProgress = "in_progress"
	FulfillmentCompleted  = "completed"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	OperatorRoleOwner    = "OWNER"
	OperatorRoleOperator = "OPERATOR"
)

// ── Group B: Configurable labels (no DB constraint) ──

// UnitKilogram marks a weight-priced cart line. Every other unit is a discrete piece.
const UnitKilogram = "Kilogram"

const (
	EventOrderHeld             = "held"
	EventOrderAwaitingAssembly = "awaiting_assembly"
	EventOrderAdjusted         = "adjusted"
	EventOrderPaid             = "paid"
	EventFulfillmentUpdated    = "fulfillment_updated"
	EventCatalogSynced         = "catalog_synced"
)

const (
	SessionActionAdjust = "adjust"
)
