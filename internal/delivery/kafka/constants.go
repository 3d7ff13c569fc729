package kafka

const (
	TopicIssueRequest   = "claim.issue.req"
	TopicAdvanceRequest = "claim.advance.req"
	TopicListRequest    = "claim.list.req"
	TopicGetRequest     = "claim.get.req"
	TopicIssueRetry     = "claim.issue.retry"
	TopicAdvanceRetry   = "claim.advance.retry"
	TopicListRetry      = "claim.list.retry"
	TopicGetRetry       = "claim.get.retry"
	TopicReplyPrefix    = "claim.reply."
	TopicRequestSuffix  = ".req"
	TopicRetrySuffix    = ".retry"
	TopicDLQSuffix      = ".dlq"

	SchemaVersion = 1

	RetryHeaderNextAt = "x-next-at"
	AttemptHeader     = "x-attempt"
	ErrorHeaderKey    = "x-error"
)

func RequestTopics() []string {
	return []string{TopicIssueRequest, TopicAdvanceRequest, TopicListRequest, TopicGetRequest}
}

func RetryTopics() []string {
	return []string{TopicIssueRetry, TopicAdvanceRetry, TopicListRetry, TopicGetRetry}
}

func ReplyTopic(instanceID string) string {
	return TopicReplyPrefix + instanceID
}
