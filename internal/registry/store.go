package registry

// Registry is the method set every HTTP front-end drives. Lookups return nil
// with a nil error when the entry is absent.
type Registry interface {
	GetName(name string) (*UpdateMessage, error)
	GetIDKey(user string) ([]byte, error)

	// trusted path, no verification
	AddID(user string, key []byte) error
	UpdateName(name string, msg UpdateMessage) error

	ValidateUpdate(msg UpdateMessage) error
	ApplyUpdateIfValid(name string, msg UpdateMessage) error
}

func validate(msg UpdateMessage, key []byte, found bool) error {
	if !found {
		return &UnknownUserError{User: msg.User}
	}
	return msg.VerifySignature(key)
}
