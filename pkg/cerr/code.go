package cerr

// Code classifies an error so callers can branch without string matching.
type Code int

const (
	OK Code = iota
	Unknown
	InvalidArgument
	UnknownProvider
	NotAuthenticated
	InvalidTaskID
	NotFound
	Ambiguous
	UnsupportedFieldType
	UnsupportedCapability
	ProviderCallFailure
	Internal
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case Unknown:
		return "unknown"
	case InvalidArgument:
		return "invalid_argument"
	case UnknownProvider:
		return "unknown_provider"
	case NotAuthenticated:
		return "not_authenticated"
	case InvalidTaskID:
		return "invalid_task_id"
	case NotFound:
		return "not_found"
	case Ambiguous:
		return "ambiguous"
	case UnsupportedFieldType:
		return "unsupported_field_type"
	case UnsupportedCapability:
		return "unsupported_capability"
	case ProviderCallFailure:
		return "provider_call_failure"
	case Internal:
		return "internal"
	}
	return "unknown"
}
