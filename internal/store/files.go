package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

const (
	vaultFileName = "store.db"
	dirPerm       = 0o700
	filePerm      = 0o600
)

var (
	// ErrVaultNotFound is returned when an identity has no vault file.
	ErrVaultNotFound = errors.New("vault not found")

	// ErrCorruptDocument is returned when a vault decrypts but its content
	// is not a valid document.
	ErrCorruptDocument = errors.New("corrupt vault document")
)

// FileStore keeps one envelope file per identity under
// <root>/data/pwm/<identity>/store.db.
type FileStore struct {
	root  string
	codec *crypto.Codec
}

// NewFileStore returns a store rooted at root that seals documents with codec.
func NewFileStore(root string, codec *crypto.Codec) *FileStore {
	return &FileStore{root: root, codec: codec}
}

func (s *FileStore) identityDir(identity string) string {
	return filepath.Join(s.root, "data", "pwm", identity)
}

// Path returns the vault file path of identity.
func (s *FileStore) Path(identity string) string {
	return filepath.Join(s.identityDir(identity), vaultFileName)
}

// Exists reports whether a vault file is present for identity.
func (s *FileStore) Exists(identity string) (bool, error) {
	_, err := os.Stat(s.Path(identity))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat vault: %w", err)
}

// Load reads, verifies and decrypts the vault of identity. A damaged file
// yields crypto.ErrCorruptEnvelope before any key derivation takes place.
func (s *FileStore) Load(identity string, passphrase []byte) (*record.Document, error) {
	data, err := os.ReadFile(s.Path(identity))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("read vault: %w", err)
	}

	env, err := crypto.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.codec.Decrypt(env, passphrase)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(plaintext)

	doc := record.NewDocument()
	if err := json.Unmarshal(plaintext, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return doc, nil
}

// CreateEmpty returns a fresh document. Nothing is written until Save.
func (s *FileStore) CreateEmpty(string) *record.Document {
	return record.NewDocument()
}

// Save encrypts doc under passphrase and replaces the vault file. The write
// goes to a temporary file that is synced and renamed over the old one, so a
// crash leaves either the previous or the new vault on disk.
func (s *FileStore) Save(identity string, doc *record.Document, passphrase []byte) error {
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	defer crypto.ZeroBytes(plaintext)

	env, err := s.codec.Encrypt(plaintext, passphrase)
	if err != nil {
		return err
	}
	data, err := env.MarshalBinary()
	if err != nil {
		return err
	}

	dir := s.identityDir(identity)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	return writeFileAtomic(dir, vaultFileName, data)
}

// Delete removes the vault of identity and its directory if empty. A missing
// vault is not an error.
func (s *FileStore) Delete(identity string) error {
	if err := os.Remove(s.Path(identity)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove vault: %w", err)
	}
	// Leftover files keep the directory; that is fine.
	_ = os.Remove(s.identityDir(identity))
	return nil
}

// List returns the identities that have a vault file, sorted.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "data", "pwm"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list vaults: %w", err)
	}

	var identities []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if ok, _ := s.Exists(e.Name()); ok {
			identities = append(identities, e.Name())
		}
	}
	sort.Strings(identities)
	return identities, nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("replace vault: %w", err)
	}
	committed = true

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
