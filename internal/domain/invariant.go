package domain

// Invariant reports a programming-contract violation. Development builds
// (-tags debug) panic so the caller's bug surfaces at the call site; release
// builds return err unchanged for the caller to reject the operation.
func Invariant(err error) error {
	if err != nil && debugAssertions {
		panic(err)
	}
	return err
}
