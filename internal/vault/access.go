package vault

import (
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

// ManagerApp is the caller id of the privileged password manager. Every
// other id is an ordinary application.
const ManagerApp = ""

// IsManager reports whether app is the privileged caller.
func IsManager(app string) bool {
	return app == ManagerApp
}

func requireManager(callerApp string) error {
	if !IsManager(callerApp) {
		return ErrUnauthorized
	}
	return nil
}

// resolveTarget returns the owner bucket callerApp may act on. An empty
// target means the caller itself; only the manager may name another owner.
func resolveTarget(callerApp, targetApp string) (string, error) {
	if targetApp == "" || targetApp == callerApp {
		return callerApp, nil
	}
	if IsManager(callerApp) {
		return targetApp, nil
	}
	return "", ErrUnauthorized
}

// lookup finds key in the owner bucket. An ordinary caller asking for a key
// held only by other owners gets ErrUnauthorized.
func lookup(doc *record.Document, callerApp, owner, key string) (record.Record, error) {
	if r, ok := doc.Get(owner, key); ok {
		return record.Clone(r), nil
	}
	if !IsManager(callerApp) && len(doc.Owners(key)) > 0 {
		return nil, ErrUnauthorized
	}
	return nil, ErrRecordNotFound
}
