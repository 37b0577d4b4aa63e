package vault

import (
	"time"

	"github.com/awnumar/memguard"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

// session is one unlocked identity. It is owned by the registry and only
// touched while the identity mutex is held.
type session struct {
	identity   string
	doc        *record.Document
	passphrase *memguard.LockedBuffer
	unlockedAt time.Time
}

// newSession moves passphrase into locked memory; the source slice is wiped.
func newSession(identity string, doc *record.Document, passphrase []byte, now time.Time) *session {
	return &session{
		identity:   identity,
		doc:        doc,
		passphrase: memguard.NewBufferFromBytes(passphrase),
		unlockedAt: now,
	}
}

// replacePassphrase swaps in a new passphrase and destroys the old buffer.
func (s *session) replacePassphrase(passphrase []byte) {
	old := s.passphrase
	s.passphrase = memguard.NewBufferFromBytes(passphrase)
	old.Destroy()
}

func (s *session) destroy() {
	s.passphrase.Destroy()
	s.doc.Clear()
}
