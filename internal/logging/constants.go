package logging

// Field names used across the engine so log lines can be filtered consistently.
const (
	FieldMessageID     = "message_id"
	FieldSender        = "sender"
	FieldTransactionID = "transaction_id"
	FieldCategory      = "category"
	FieldDirection     = "direction"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldMerchant      = "merchant"
	FieldAccount       = "account"
	FieldRule          = "rule"
	FieldStrategy      = "strategy"
	FieldBudgetID      = "budget_id"
	FieldOutcome       = "outcome"
	FieldReason        = "reason"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldCount         = "count"
	FieldBatch         = "batch"
	FieldFile          = "file_path"
	FieldDuration      = "duration_ms"
)
