package notes

import "pdfrealm/internal/errs"

var (
	ErrUnauthenticated = errs.New(errs.KindUnauthenticated, "login required")
	ErrNotMember       = errs.New(errs.KindForbidden, "not a member of this context")
	ErrNotContextOwner = errs.New(errs.KindForbidden, "only the context owner can enable AI notes")
	ErrNotOwner        = errs.New(errs.KindForbidden, "owner only")

	ErrInvalidKind       = errs.New(errs.KindInvalid, "invalid session type")
	ErrContextRequired   = errs.New(errs.KindInvalid, "context id is required")
	ErrNotChatSession    = errs.New(errs.KindInvalid, "chat transcript is only accepted for chat sessions")
	ErrInvalidChat       = errs.New(errs.KindInvalid, "chat transcript must be a JSON object with a messages array")
	ErrEmptyChunk        = errs.New(errs.KindInvalid, "chunk is empty")
	ErrInvalidSequence   = errs.New(errs.KindInvalid, "chunk sequence must be between 0 and 999999")
	ErrChunkTooLarge     = errs.New(errs.KindTooLarge, "chunk exceeds the upload limit")
	ErrChatTooLarge      = errs.New(errs.KindTooLarge, "chat transcript exceeds the upload limit")
	ErrSessionNotFound   = errs.New(errs.KindNotFound, "session not found")
	ErrJobNotFound       = errs.New(errs.KindNotFound, "job not found")
	ErrReportNotFound    = errs.New(errs.KindNotFound, "report not ready")
	ErrNotParticipant    = errs.New(errs.KindNotFound, "not a participant of this session")
	ErrConsentPending    = errs.New(errs.KindConflict, "waiting for consent")
	ErrConsentDeclined   = errs.New(errs.KindConflict, "a participant declined consent")
	ErrSessionFailed     = errs.New(errs.KindConflict, "session has failed")
	ErrInvalidTransition = errs.New(errs.KindConflict, "session status does not allow this action")

	ErrChatTranscriptMissing = errs.New(errs.KindInternal, "chat transcript missing (host must upload before finalize)")
	ErrNothingToStitch       = errs.New(errs.KindInternal, "no chunks found to stitch")
)
