package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldUserID    = "user_id"
	FieldCategory  = "category"
	FieldMerchant  = "merchant"
	FieldAmount    = "amount"
	FieldDate      = "date"
	FieldLine      = "line"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldReason    = "reason"
	FieldDuration  = "duration_ms"
	FieldRunID     = "run_id"
	FieldCommand   = "command"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentIngest  = "ingest"
	ComponentAMQP    = "amqp"
	ComponentQuotes  = "quotes"
	ComponentAuth    = "auth"
	ComponentExport  = "export"
	ComponentWorker  = "worker"
)

// Operations defines standard operation names
const (
	OpLoad     = "load"
	OpAppend   = "append"
	OpSubmit   = "submit"
	OpRegister = "register"
	OpPublish  = "publish"
	OpExport   = "export"
	OpLookup   = "lookup"
	OpStartup  = "startup"
	OpMirror   = "mirror"
	OpCleanup  = "cleanup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithError adds the error field when err is non-nil
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the fields of a ledger record. amount is the exact
// decimal text.
func (f LogFields) WithTransaction(date, category, merchant, amount string) LogFields {
	f[FieldDate] = date
	f[FieldCategory] = category
	f[FieldMerchant] = merchant
	f[FieldAmount] = amount
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
