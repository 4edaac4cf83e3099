package errs

import (
	"errors"
	"syscall"
)

// Category buckets an error for retry purposes (RetryController) and for
// error metrics. OCCAbort retries live entirely outside the core.
type Category int

const (
	CategoryPermanent Category = iota
	CategoryTransient
	CategoryCritical
)

// String renders the category for metric labels and log fields.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryCritical:
		return "critical"
	default:
		return "permanent"
	}
}

// Classifier categorizes persistence-layer errors for the retry controller.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify inspects err and returns its retry category.
func (c *Classifier) Classify(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.EAGAIN, syscall.ETIMEDOUT:
			return CategoryTransient
		case syscall.ENOSPC, syscall.EIO:
			return CategoryCritical
		case syscall.ENOENT, syscall.EINVAL, syscall.EEXIST:
			return CategoryPermanent
		}
	}

	var pu *PersistenceUnavailable
	if errors.As(err, &pu) {
		return CategoryTransient
	}

	return CategoryPermanent
}

// ShouldRetry reports whether the category warrants an automatic retry.
func (c *Classifier) ShouldRetry(cat Category) bool {
	return cat == CategoryTransient
}
