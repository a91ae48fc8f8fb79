package errors

// WrapOpComponent wraps err as a storage failure with consistent Op and Component.
// If err is nil, returns nil.
func WrapOpComponent(err error, op Operation, component string) error {
	if err == nil {
		return nil
	}
	return NewStorageError(op, component, err)
}

// WrapOpComponentKind wraps err with Op, Component and Kind.
// If err is nil, returns nil.
func WrapOpComponentKind(err error, op Operation, component string, kind Kind) error {
	if err == nil {
		return nil
	}
	return NewWithComponent(op, component, kind, err)
}
