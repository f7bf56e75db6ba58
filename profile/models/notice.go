package models

// NoticeKind tags the outcome of a transition so callers can branch on the
// kind instead of matching presentation text.
type NoticeKind string

const (
	NoticeNone       NoticeKind = ""
	NoticeLoaded     NoticeKind = "loaded"
	NoticeSaved      NoticeKind = "saved"
	NoticeDeleted    NoticeKind = "deleted"
	NoticePayment    NoticeKind = "payment"
	NoticeValidation NoticeKind = "validation"
	NoticeStoreError NoticeKind = "store_error"
	// NoticeTimeout is a store error to the user but kept distinct so the
	// load-timeout path stays observable.
	NoticeTimeout  NoticeKind = "timeout"
	NoticeRejected NoticeKind = "payment_rejected"
)

// Notice is a transient, dismissible message overlaying the current state.
type Notice struct {
	Kind   NoticeKind `json:"kind"`
	Detail string     `json:"detail,omitempty"`
}
