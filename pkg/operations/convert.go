package operations

import "github.com/systmms/keyops/pkg/requests"

// Converter turns opaque bodies into native operations and native
// results back into bodies for one body encoding. Implementations must
// round-trip every operation and result variant.
type Converter interface {
	// BodyType names the encoding this converter handles.
	BodyType() requests.BodyType
	// BodyToOperation decodes a request body into the operation variant
	// selected by the opcode.
	BodyToOperation(body []byte, opcode requests.Opcode) (NativeOperation, error)
	// OperationToBody encodes an operation into a request body.
	OperationToBody(op NativeOperation) ([]byte, error)
	// BodyToResult decodes a response body into the result variant
	// selected by the opcode.
	BodyToResult(body []byte, opcode requests.Opcode) (NativeResult, error)
	// ResultToBody encodes a result into a response body.
	ResultToBody(res NativeResult) ([]byte, error)
}
