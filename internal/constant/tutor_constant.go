package constant

const (
	// Transcript announcements
	TutorHistoryLoadFailedMessage = "Could not load the previous conversation. You can keep chatting in this session."
	TutorCreateFailedMessage      = "The connection to the server is unstable. Please try again later."
	TutorNewConversationMessage   = "A new conversation has started. Ask anything about your code."
	TutorFromDocumentMessage      = "A new conversation was created from the document \"%s\"."
	TutorConnectionErrorMessage   = "Lost the connection to the tutor. Please send your message again."
	TutorSendFailedMessage        = "Your message could not be delivered. Please check the connection and try again."

	// TutorReanalyzeQuestion asks the tutor to analyze the current document again.
	TutorReanalyzeQuestion = "Please analyze the current code again."

	TutorStateTopic = "tutor.state"

	TutorDocumentIngestedDurable = "tutor-engine-catalog"
)
