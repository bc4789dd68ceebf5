package authz

//go:generate go run github.com/dmarkham/enumer -type Reason -trimprefix Reason -json -output reason.gen.go

// Reason explains a decision. Only ReasonGranted allows.
type Reason int

const (
	ReasonGranted Reason = iota
	ReasonNotFound
	ReasonNotGranted
	ReasonMfaRequired
	ReasonApprovalRequired
)
