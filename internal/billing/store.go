package billing

import (
	"github.com/shopbill/shopfront/internal/shared"
)

// DraftSessionKey is the session key holding the draft bill.
const DraftSessionKey = "bill_draft"

// LoadDraft reads the draft kept in sess. A missing or unreadable draft yields an empty one.
func LoadDraft(sess *shared.Session) *Draft {
	draft := NewDraft()
	if sess == nil {
		return draft
	}
	if ok, err := sess.GetJSON(DraftSessionKey, draft); err != nil || !ok {
		return NewDraft()
	}
	if !draft.Mode.Valid() {
		draft.SetMode(draft.Mode)
	}
	return draft
}

// SaveDraft writes d back into sess.
func SaveDraft(sess *shared.Session, d *Draft) error {
	if sess == nil {
		return shared.ErrSessionMissing
	}
	return sess.SetJSON(DraftSessionKey, d)
}

// ClearDraft removes the draft from sess.
func ClearDraft(sess *shared.Session) {
	if sess != nil {
		sess.Delete(DraftSessionKey)
	}
}
