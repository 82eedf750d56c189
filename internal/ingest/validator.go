package ingest

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ReasonCode classifies why a submitted document was rejected.
type ReasonCode string

const (
	ReasonMissingName     ReasonCode = "missing_name"
	ReasonReadFailure     ReasonCode = "read_failure"
	ReasonSizeExceeded    ReasonCode = "size_exceeded"
	ReasonUnsupportedType ReasonCode = "unsupported_type"
	ReasonPersistFailure  ReasonCode = "persist_failure"
	ReasonUnexpectedError ReasonCode = "unexpected_error"
)

// SubmittedItem is one named payload from a batch submission. The payload
// reader belongs to the ingest call that received it and is consumed at most
// once, by validation.
type SubmittedItem struct {
	Name        string
	ContentType string
	Payload     io.Reader
}

// Outcome is the validation result for exactly one SubmittedItem. Accepted
// outcomes carry the generated storage name and the payload bytes so the
// caller can persist without re-reading; rejected outcomes carry the reason.
type Outcome struct {
	Accepted    bool
	StorageName string
	Data        []byte
	Reason      ReasonCode
	Message     string
}

func rejected(reason ReasonCode, message string) Outcome {
	return Outcome{Reason: reason, Message: message}
}

// Validator classifies one submitted item as accepted or rejected.
type Validator struct {
	MaxSizeBytes int64
	Extension    string
	MIMEType     string
}

// Validate applies the acceptance rules in strict order: name present, payload
// readable, size within limit, extension and MIME type both matching. The
// first failing rule wins. Accepted items get a storage name of the form
// <stem>_<uuid><ext>; the 128-bit random suffix makes collisions negligible.
func (v Validator) Validate(item SubmittedItem) Outcome {
	if item.Name == "" {
		return rejected(ReasonMissingName, "filename is missing")
	}

	data, err := io.ReadAll(item.Payload)
	if err != nil {
		return rejected(ReasonReadFailure, fmt.Sprintf("failed to read file: %v", err))
	}

	if int64(len(data)) > v.MaxSizeBytes {
		return rejected(ReasonSizeExceeded, fmt.Sprintf(
			"file size %.2fMB exceeds the limit of %.2fMB",
			float64(len(data))/(1<<20), float64(v.MaxSizeBytes)/(1<<20)))
	}

	if !strings.HasSuffix(item.Name, v.Extension) || item.ContentType != v.MIMEType {
		return rejected(ReasonUnsupportedType, fmt.Sprintf(
			"invalid file type: only %s documents are allowed (got %s)",
			v.Extension, item.ContentType))
	}

	base := filepath.Base(item.Name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	return Outcome{
		Accepted:    true,
		StorageName: fmt.Sprintf("%s_%s%s", stem, uuid.NewString(), ext),
		Data:        data,
	}
}
