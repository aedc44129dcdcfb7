package parserd

import (
	"context"
	"errors"
)

// ErrMalformedPayload indicates that a submission's XML cannot be parsed
// or transformed and will never succeed on retry.
//
// Transformer implementations wrap structural failures in this sentinel;
// the worker maps it to the Rejected terminal state. Any other transform
// error is treated as transient and maps to Failed.
var ErrMalformedPayload = errors.New("malformed payload")

// Report is the result of transforming one submission.
//
// Document is the rendered report XML, written verbatim into the
// client's report directory. Rows are the structured facts extracted
// from the document for the report tables.
type Report struct {
	Document []byte
	Rows     []ReportRow
}

// Transformer runs the XSLT stylesheet over a submission payload.
//
// Implementations share one compiled stylesheet across all workers; the
// stylesheet is immutable after startup and safe for concurrent use.
// The transform subpackage provides the libxslt-backed implementation.
type Transformer interface {

	// Transform reads the payload at payloadPath and produces the report.
	//
	// Structural failures (unparsable XML, stylesheet errors caused by
	// the input) wrap ErrMalformedPayload. Everything else, such as a
	// missing payload file or an I/O error, is transient.
	Transform(ctx context.Context, payloadPath string) (*Report, error)
}
