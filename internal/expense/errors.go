package expense

// ValidationError reports missing or malformed input before a transition
type ValidationError struct {
	Detail string
	Err    error
}

func (e *ValidationError) Error() string { return e.Detail }
func (e *ValidationError) Unwrap() error { return e.Err }

// EncodingError reports a receipt file that could not be read
type EncodingError struct {
	Detail string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}
func (e *EncodingError) Unwrap() error { return e.Err }

// AnalysisError reports a failure of the receipt analysis service
type AnalysisError struct {
	Detail string
	Err    error
}

func (e *AnalysisError) Error() string { return e.Detail }
func (e *AnalysisError) Unwrap() error { return e.Err }

// PersistenceError reports a failed list, create, update or delete call.
// Detail is the service's message and is shown to the user as-is.
type PersistenceError struct {
	Detail string
	Err    error
}

func (e *PersistenceError) Error() string { return e.Detail }
func (e *PersistenceError) Unwrap() error { return e.Err }

// NotAvailableError reports a record without a stored receipt
type NotAvailableError struct {
	RecordID string
}

func (e *NotAvailableError) Error() string {
	return "no receipt stored for this record"
}
