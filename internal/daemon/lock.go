package daemon

// Lock is a named, system-scoped exclusive resource. Once acquired it is held
// until the process exits; the operating system releases it even on a crash,
// so there is no release method.
type Lock interface {
	TryAcquire() (bool, error)
}
