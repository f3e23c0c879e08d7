package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the transport layer can map it to a status
// code without understanding individual error codes.
type Kind int

const (
	KindServer Kind = iota
	KindClient
	KindNotFound
	KindConflict
	KindSecurity
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindNotFound:
		return "not-found"
	case KindConflict:
		return "conflict"
	case KindSecurity:
		return "security"
	default:
		return "server"
	}
}

// Stable error codes surfaced to callers. These form part of the public
// contract and must not be renumbered or reworded casually.
const (
	CodeDomainInvalid     = "TEN-DOMAIN-INVALID"
	CodeEmailInvalid      = "TEN-EMAIL-INVALID"
	CodeFilterInvalid     = "TEN-FILTER-INVALID"
	CodePageInvalid       = "TEN-PAGE-INVALID"
	CodeDomainTaken       = "TEN-DOMAIN-TAKEN"
	CodeUsernameTaken     = "TEN-USERNAME-TAKEN"
	CodeDeletionDisabled  = "TEN-DELETE-DISABLED"
	CodeTenantNotFound    = "TEN-NOT-FOUND"
	CodeRootRequired      = "TEN-ROOT-REQUIRED"
	CodeNamespaceReserved = "NS-RESERVED"
	CodeNamespaceConflict = "NS-CONFLICT"
	CodeNamespaceNotFound = "NS-NOT-FOUND"
	CodeManifestsNotFound = "DEP-DIR-NOT-FOUND"
	CodeDeployNotFound    = "DEP-NOT-FOUND"
	CodeManifestMalformed = "DEP-MANIFEST-MALFORMED"
	CodeStoreFailure      = "SRV-STORE"
	CodeOrchestrator      = "SRV-ORCHESTRATOR"
	CodeBroadcast         = "SRV-BROADCAST"
	CodeListener          = "SRV-LISTENER"
)

// Fault is the typed failure every public operation returns on error. It
// carries a stable code and a human-readable message; the wrapped cause, if
// any, is never surfaced raw to callers.
type Fault struct {
	Code    string
	Kind    Kind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Fault) Unwrap() error { return f.Err }

// ClientFaultf builds a client (bad request) fault.
func ClientFaultf(code, format string, args ...any) *Fault {
	return &Fault{Code: code, Kind: KindClient, Message: fmt.Sprintf(format, args...)}
}

// ConflictFaultf builds a conflict fault.
func ConflictFaultf(code, format string, args ...any) *Fault {
	return &Fault{Code: code, Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// SecurityFaultf builds a security fault. These surface as server errors but
// carry a distinct kind so callers can emit a security alert log.
func SecurityFaultf(code, format string, args ...any) *Fault {
	return &Fault{Code: code, Kind: KindSecurity, Message: fmt.Sprintf(format, args...)}
}

// ServerFault wraps a lower-layer failure as a server fault.
func ServerFault(code, message string, err error) *Fault {
	return &Fault{Code: code, Kind: KindServer, Message: message, Err: err}
}

// Sentinel not-found faults. Adapters return these directly so callers can
// test with errors.Is.
var (
	ErrTenantNotFound     = &Fault{Code: CodeTenantNotFound, Kind: KindNotFound, Message: "tenant not found"}
	ErrDeploymentNotFound = &Fault{Code: CodeDeployNotFound, Kind: KindNotFound, Message: "deployment not found"}
	ErrNamespaceNotFound  = &Fault{Code: CodeNamespaceNotFound, Kind: KindNotFound, Message: "namespace not found"}
)

// KindOf classifies any error. Errors that are not Faults are server errors.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindServer
}

// CodeOf returns the stable code of an error, or SRV-STORE's generic sibling
// for unclassified failures.
func CodeOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return CodeStoreFailure
}

// TransitionError is returned when a lifecycle transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// PersistenceError wraps any failure during the persist-tenant sequence,
// carrying the original cause.
type PersistenceError struct {
	Domain string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting tenant %q: %v", e.Domain, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
