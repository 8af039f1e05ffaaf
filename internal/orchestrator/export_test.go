package orchestrator

// SetLookPath replaces the PATH lookup used by CheckDependencies until the
// returned restore func is called.
func SetLookPath(f func(string) (string, error)) (restore func()) {
	prev := lookPath
	lookPath = f
	return func() { lookPath = prev }
}
