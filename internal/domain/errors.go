package domain

import "github.com/cockroachdb/errors"

// Error taxonomy. Producers attach a mark with errors.Mark; callers branch
// with errors.Is. The class decides propagation: discovery, generation and
// delivery errors are local to one unit/row, storage errors are fatal only
// for the phase-1 batch write.
var (
	ErrDiscovery  = errors.New("discovery error")
	ErrGeneration = errors.New("generation error")
	ErrDelivery   = errors.New("delivery error")
	ErrStorage    = errors.New("storage error")
)

// StorageErr wraps err as a StorageError with context.
func StorageErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), ErrStorage)
}

// DeliveryErr wraps err as a DeliveryError with context.
func DeliveryErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), ErrDelivery)
}
