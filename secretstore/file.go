package secretstore

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/wlo1561411/HappyTime/aeswrapper"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
	saltSize = aeswrapper.MinSaltSize
)

var magic = []byte("HTS1")

// Sealer offers behaviour to seal and open bytes with a key.
type Sealer interface {
	Encrypt(key, data []byte) ([]byte, error)
	Decrypt(key, data []byte) ([]byte, error)
}

// Config holds configuration of the sealed file store.
type Config struct {
	Path       string `yaml:"path"`       // path to the sealed file
	Passphrase string `yaml:"passphrase"` // passphrase the sealing key is derived from
}

// Defaults returns the config with an empty path set to the user config directory.
func (c Config) Defaults() Config {
	if c.Path != "" {
		return c
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		c.Path = "happytime.sealed"
		return c
	}
	c.Path = filepath.Join(dir, "happytime", "secrets.sealed")
	return c
}

// File is a Store persisted in a single sealed file.
// The file starts with the magic and the salt, followed by the sealed JSON object of all secrets.
// A missing file is an empty store. Every write replaces the file atomically.
type File struct {
	mux sync.Mutex
	cfg Config
	s   Sealer
}

// NewFile creates a File store.
func NewFile(cfg Config, s Sealer) (*File, error) {
	cfg = cfg.Defaults()
	if cfg.Passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &File{cfg: cfg, s: s}, nil
}

// Path returns the path of the sealed file.
func (f *File) Path() string {
	return f.cfg.Path
}

// Save stores value under key.
func (f *File) Save(value, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	f.mux.Lock()
	defer f.mux.Unlock()

	values, salt, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values, salt)
}

// Query returns the value under key and whether it exists.
func (f *File) Query(key string) (string, bool, error) {
	f.mux.Lock()
	defer f.mux.Unlock()

	values, _, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (f *File) Delete(key string) error {
	f.mux.Lock()
	defer f.mux.Unlock()

	values, salt, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.write(values, salt)
}

func (f *File) read() (map[string]string, []byte, error) {
	raw, err := os.ReadFile(f.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if len(raw) < len(magic)+saltSize || !bytes.Equal(raw[:len(magic)], magic) {
		return nil, nil, errors.Join(ErrInvalidFile, errors.New("unknown header"))
	}
	salt := raw[len(magic) : len(magic)+saltSize]

	key, err := aeswrapper.DeriveKey(f.cfg.Passphrase, salt)
	if err != nil {
		return nil, nil, errors.Join(ErrSealFailure, err)
	}
	opened, err := f.s.Decrypt(key, raw[len(magic)+saltSize:])
	if err != nil {
		return nil, nil, errors.Join(ErrSealFailure, err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(opened, &values); err != nil {
		return nil, nil, errors.Join(ErrInvalidFile, err)
	}
	return values, bytes.Clone(salt), nil
}

func (f *File) write(values map[string]string, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return errors.Join(ErrSealFailure, err)
		}
	}

	plain, err := json.Marshal(values)
	if err != nil {
		return err
	}
	key, err := aeswrapper.DeriveKey(f.cfg.Passphrase, salt)
	if err != nil {
		return errors.Join(ErrSealFailure, err)
	}
	sealed, err := f.s.Encrypt(key, plain)
	if err != nil {
		return errors.Join(ErrSealFailure, err)
	}

	out := make([]byte, 0, len(magic)+len(salt)+len(sealed))
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, sealed...)

	return writeAtomic(f.cfg.Path, out)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".secrets-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
