package entities

// Principal is the authenticated caller of an operation
type Principal struct {
	UserID   int64
	IsAdmin  bool
	IsBanned bool
}

// System is the principal used by background workers and operator tooling
var System = Principal{IsAdmin: true}
