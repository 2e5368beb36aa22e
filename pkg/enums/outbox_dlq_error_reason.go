package enums

// OutboxDLQErrorReason classifies why an outbox event landed in the DLQ.
type OutboxDLQErrorReason string

const (
	DLQReasonMaxAttempts   OutboxDLQErrorReason = "max_attempts_exceeded"
	DLQReasonDecodeFailure OutboxDLQErrorReason = "decode_failure"
	DLQReasonUnroutable    OutboxDLQErrorReason = "unroutable_event"
)
