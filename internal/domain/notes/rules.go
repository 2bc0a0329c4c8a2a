package notes

// Status sets accepted by each gated transition. Every set excludes FAILED.
var (
	ConsentStatuses  = []Status{StatusConsentPending, StatusRecording}
	CaptureStatuses  = []Status{StatusConsentPending, StatusRecording}
	FinalizeStatuses = []Status{StatusConsentPending, StatusRecording, StatusReady}
	LiveStatuses     = []Status{
		StatusConsentPending,
		StatusRecording,
		StatusFinalizing,
		StatusProcessing,
		StatusReady,
	}
)

func statusIn(status Status, allowed []Status) bool {
	for _, candidate := range allowed {
		if status == candidate {
			return true
		}
	}
	return false
}

// CheckConsent validates that a consent decision may be recorded.
func CheckConsent(s Session) error {
	if s.Status == StatusFailed {
		return ErrSessionFailed
	}
	if !statusIn(s.Status, ConsentStatuses) {
		return ErrInvalidTransition
	}
	return nil
}

// CheckCapture validates start and chunk upload against the live tally.
func CheckCapture(s Session, actor Actor, tally Tally) error {
	if !s.OwnedBy(actor) {
		return ErrNotOwner
	}
	if s.Status == StatusFailed {
		return ErrSessionFailed
	}
	if tally.AnyDeclined {
		return ErrConsentDeclined
	}
	if !tally.AllConsented {
		return ErrConsentPending
	}
	if !statusIn(s.Status, CaptureStatuses) {
		return ErrInvalidTransition
	}
	return nil
}

// CheckChatTranscript validates a chat transcript upload.
func CheckChatTranscript(s Session, actor Actor) error {
	if !s.OwnedBy(actor) {
		return ErrNotOwner
	}
	if s.Kind != KindChat {
		return ErrNotChatSession
	}
	if s.Status == StatusFailed {
		return ErrSessionFailed
	}
	if !statusIn(s.Status, CaptureStatuses) {
		return ErrInvalidTransition
	}
	return nil
}

// CheckFinalize validates that the owner may enqueue a processing job.
func CheckFinalize(s Session, actor Actor, tally Tally) error {
	if !s.OwnedBy(actor) {
		return ErrNotOwner
	}
	if s.Status == StatusFailed {
		return ErrSessionFailed
	}
	if tally.AnyDeclined {
		return ErrConsentDeclined
	}
	if !statusIn(s.Status, FinalizeStatuses) {
		return ErrInvalidTransition
	}
	return nil
}
