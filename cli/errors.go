package cli

// ErrorCode defines error types for CLI operations
type ErrorCode string

const (
	NoQuerySpecified ErrorCode = "NoQuerySpecified"
	InvalidFlag      ErrorCode = "InvalidFlag"
	InvalidArguments ErrorCode = "InvalidArguments"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}
