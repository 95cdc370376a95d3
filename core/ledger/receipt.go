package ledger

import (
	"net/http"
	"strings"

	"github.com/akilisha/darasa/core"
)

// MaxReceiptSize is the upload cap for receipt images.
const MaxReceiptSize = 5 << 20 // 5 MB

// ValidateReceipt rejects a receipt upload before any storage call is made.
// head must hold the first bytes of the file (up to 512) for MIME sniffing.
func ValidateReceipt(size int64, head []byte) error {
	if size > MaxReceiptSize {
		return core.NewValidationError(nil, core.FieldError{Field: "receipt", Error: "file exceeds the 5 MB limit"})
	}
	ct := http.DetectContentType(head)
	if !strings.HasPrefix(ct, "image/") {
		return core.NewValidationError(nil, core.FieldError{Field: "receipt", Error: "only image files are allowed"})
	}
	return nil
}
