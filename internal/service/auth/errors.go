package auth

// Kind enumerates every way an auth operation can fail. The HTTP boundary
// matches this enumeration exhaustively; there is no catch-all case.
type Kind int

const (
	KindInvalidCredentials Kind = iota
	KindEmailTaken
	KindInvalidInput
	KindTokenInvalid
	KindTokenExpired
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindEmailTaken:
		return "email already registered"
	case KindInvalidInput:
		return "invalid input"
	case KindTokenInvalid:
		return "invalid token"
	case KindTokenExpired:
		return "token expired"
	case KindInternal:
		return "internal error"
	}
	return "unknown"
}

// Error is the tagged failure type for the identity boundary.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "auth: " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "auth: " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func authErr(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
