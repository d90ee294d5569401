package sim

// Target is a slave device on the simulated bus.
//
// Start is called for every address phase addressing the target and
// reports whether the address is acknowledged. Write reports whether the
// byte is acknowledged. Stop ends the transaction, either by a stop
// condition or when the master moves on to another device.
type Target interface {
	Start(read bool) bool
	Write(b byte) bool
	Read() byte
	Stop()
}

// Aborter is implemented by targets that discard an unfinished write when
// the transaction ends without a stop condition, as after an arbitration
// loss or a bus fault.
type Aborter interface {
	Abort()
}
