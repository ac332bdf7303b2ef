package errs

// Error codes, grouped per failure source. Local validation failures never
// reach the transport; transport-reported failures are routed back to the
// initiating call site.
const (
	CodeConnection    = 1001 // transport unavailable or severed
	CodeValidation    = 1002 // rejected before any network call
	CodeGroupCreation = 1003 // server rejected a group create/join
	CodeAttachment    = 1004 // local file unreadable
	CodeProtocol      = 1005 // server-reported generic failure
	CodeAuth          = 1006 // credential rejected at connect
)

var (
	ErrConnection    = NewCodeError(CodeConnection, "connection unavailable")
	ErrValidation    = NewCodeError(CodeValidation, "validation failed")
	ErrGroupCreation = NewCodeError(CodeGroupCreation, "group creation rejected")
	ErrAttachment    = NewCodeError(CodeAttachment, "attachment unreadable")
	ErrProtocol      = NewCodeError(CodeProtocol, "protocol error")
	ErrAuth          = NewCodeError(CodeAuth, "authentication failed")
)
