package errors

const (
	HttpInternalError       = "internal_error"
	HttpInvalidRequestError = "invalid_request"
	HttpChainUnsupported    = "chain_unsupported"
	HttpContractNotDeployed = "contract_not_deployed"
	HttpUpstreamFetchError  = "chain_fetch_failed"
	HttpUnknownOperation    = "unknown_operation"
)

// ErrorResponse is the error response body for query and confirmation errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
