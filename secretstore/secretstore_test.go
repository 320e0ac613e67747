package secretstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wlo1561411/HappyTime/aeswrapper"
)

func newFile(t *testing.T, path, passphrase string) *File {
	t.Helper()
	f, err := NewFile(Config{Path: path, Passphrase: passphrase}, aeswrapper.New())
	assert.Nil(t, err)
	return f
}

func testStore(t *testing.T, s Store) {
	_, ok, err := s.Query("account_key")
	assert.Nil(t, err)
	assert.False(t, ok)

	assert.Nil(t, s.Save("alice", "account_key"))
	assert.Nil(t, s.Save("p@ss word", "password_key"))
	assert.Nil(t, s.Save("bob", "account_key"))

	v, ok, err := s.Query("account_key")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob", v)

	assert.Nil(t, s.Delete("account_key"))
	assert.Nil(t, s.Delete("account_key"))
	_, ok, err = s.Query("account_key")
	assert.Nil(t, err)
	assert.False(t, ok)

	v, ok, err = s.Query("password_key")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p@ss word", v)

	assert.ErrorIs(t, s.Save("x", ""), ErrEmptyKey)
}

func TestStores(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		testStore(t, NewMemory())
	})
	t.Run("file", func(t *testing.T) {
		testStore(t, newFile(t, filepath.Join(t.TempDir(), "nested", "secrets.sealed"), "passphrase"))
	})
}

func TestFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.sealed")

	assert.Nil(t, newFile(t, path, "passphrase").Save("alice", "account_key"))

	v, ok, err := newFile(t, path, "passphrase").Query("account_key")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	raw, err := os.ReadFile(path)
	assert.Nil(t, err)
	assert.True(t, bytes.HasPrefix(raw, magic))
	assert.False(t, bytes.Contains(raw, []byte("alice")))

	info, err := os.Stat(path)
	assert.Nil(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())
}

func TestFileKeepsSaltAcrossWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.sealed")
	f := newFile(t, path, "passphrase")

	assert.Nil(t, f.Save("a", "one"))
	first, err := os.ReadFile(path)
	assert.Nil(t, err)
	assert.Nil(t, f.Save("b", "two"))
	second, err := os.ReadFile(path)
	assert.Nil(t, err)

	end := len(magic) + saltSize
	assert.Equal(t, first[:end], second[:end])
}

func TestFileFailures(t *testing.T) {
	dir := t.TempDir()

	t.Run("wrong passphrase", func(t *testing.T) {
		path := filepath.Join(dir, "wrong.sealed")
		assert.Nil(t, newFile(t, path, "passphrase").Save("alice", "account_key"))

		_, _, err := newFile(t, path, "guess").Query("account_key")
		assert.ErrorIs(t, err, ErrSealFailure)
	})

	t.Run("unknown header", func(t *testing.T) {
		path := filepath.Join(dir, "plain.json")
		assert.Nil(t, os.WriteFile(path, []byte(`{"account_key":"alice"}`), 0o600))

		_, _, err := newFile(t, path, "passphrase").Query("account_key")
		assert.ErrorIs(t, err, ErrInvalidFile)
		assert.ErrorIs(t, newFile(t, path, "passphrase").Save("bob", "account_key"), ErrInvalidFile)
	})

	t.Run("empty passphrase", func(t *testing.T) {
		_, err := NewFile(Config{Path: filepath.Join(dir, "x")}, aeswrapper.New())
		assert.ErrorIs(t, err, ErrEmptyPassphrase)
	})
}

func TestFileConcurrentSaves(t *testing.T) {
	f := newFile(t, filepath.Join(t.TempDir(), "secrets.sealed"), "passphrase")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.Nil(t, f.Save(fmt.Sprint(i), fmt.Sprintf("key-%d", i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		v, ok, err := f.Query(fmt.Sprintf("key-%d", i))
		assert.Nil(t, err)
		assert.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), v)
	}
}
