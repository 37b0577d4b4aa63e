package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	codec, err := crypto.NewCodec(crypto.MinIterations)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return NewFileStore(t.TempDir(), codec)
}

func sampleDocument() *record.Document {
	doc := record.NewDocument()
	doc.Put("appA", &record.WiFi{Common: record.Common{Key: "wifi1"}, SSID: "HomeNet", Password: "p1"})
	doc.Put("", &record.Account{Common: record.Common{Key: "mail"}, Login: "alice", Password: "hunter2"})
	return doc
}

func TestFileStore_SaveLoad(t *testing.T) {
	s := newTestFileStore(t)
	pass := []byte("correct horse")

	if ok, err := s.Exists("alice"); err != nil || ok {
		t.Fatalf("Exists before save = %v, %v", ok, err)
	}

	doc := sampleDocument()
	if err := s.Save("alice", doc, pass); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ok, err := s.Exists("alice"); err != nil || !ok {
		t.Fatalf("Exists after save = %v, %v", ok, err)
	}

	got, err := s.Load("alice", pass)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.All(), doc.All()) {
		t.Errorf("Load = %#v, want %#v", got.All(), doc.All())
	}

	info, err := os.Stat(s.Path("alice"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("vault permissions = %o, want 600", perm)
	}
	if s.Path("alice") != filepath.Join(s.root, "data", "pwm", "alice", "store.db") {
		t.Errorf("unexpected vault path %s", s.Path("alice"))
	}
}

func TestFileStore_WrongPassphrase(t *testing.T) {
	s := newTestFileStore(t)
	if err := s.Save("alice", sampleDocument(), []byte("right")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load("alice", []byte("wrong")); !errors.Is(err, crypto.ErrWrongPassphrase) {
		t.Errorf("Load with wrong passphrase: expected ErrWrongPassphrase, got %v", err)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := newTestFileStore(t)
	if _, err := s.Load("ghost", []byte("x")); !errors.Is(err, ErrVaultNotFound) {
		t.Errorf("expected ErrVaultNotFound, got %v", err)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	s := newTestFileStore(t)
	if err := s.Save("alice", sampleDocument(), []byte("pw")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(s.Path("alice"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[len(data)/2] ^= 0xff
	if err := os.WriteFile(s.Path("alice"), data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := s.Load("alice", []byte("pw")); !errors.Is(err, crypto.ErrCorruptEnvelope) {
		t.Errorf("expected ErrCorruptEnvelope, got %v", err)
	}
}

func TestFileStore_SaveReplaces(t *testing.T) {
	s := newTestFileStore(t)
	if err := s.Save("alice", sampleDocument(), []byte("old")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	empty := s.CreateEmpty("alice")
	if err := s.Save("alice", empty, []byte("new")); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	if _, err := s.Load("alice", []byte("old")); !errors.Is(err, crypto.ErrWrongPassphrase) {
		t.Errorf("old passphrase still opens the vault: %v", err)
	}
	got, err := s.Load("alice", []byte("new"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("Len = %d, want 0", got.Len())
	}

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(s.Path("alice")))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the vault file, found %d entries", len(entries))
	}
}

func TestFileStore_DeleteAndList(t *testing.T) {
	s := newTestFileStore(t)

	ids, err := s.List()
	if err != nil || len(ids) != 0 {
		t.Fatalf("List on empty root = %v, %v", ids, err)
	}

	for _, id := range []string{"bob", "alice"} {
		if err := s.Save(id, sampleDocument(), []byte("pw")); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}
	ids, err = s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"alice", "bob"}) {
		t.Errorf("List = %v", ids)
	}

	if err := s.Delete("alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists("alice"); ok {
		t.Error("vault still exists after Delete")
	}
	if _, err := os.Stat(filepath.Dir(s.Path("alice"))); !os.IsNotExist(err) {
		t.Errorf("identity dir not removed: %v", err)
	}
	if err := s.Delete("alice"); err != nil {
		t.Errorf("Delete missing vault: %v", err)
	}
}
