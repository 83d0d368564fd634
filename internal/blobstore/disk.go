package blobstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DiskStore is an ObjectStore backed by a local directory, with HMAC-SHA256
// signed, expiry-stamped URLs. Keys are flat file names; a key containing a
// path separator is rejected outright.
type DiskStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewDiskStore(dir, baseURL string, secret []byte) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

var _ ObjectStore = (*DiskStore)(nil)

func (d *DiskStore) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	// Write-then-rename so a crashed upload never leaves a readable partial.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (d *DiskStore) Head(_ context.Context, key string) (HeadInfo, error) {
	path, err := d.path(key)
	if err != nil {
		return HeadInfo{}, err
	}
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return HeadInfo{Exists: false}, nil
	}
	if err != nil {
		return HeadInfo{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return HeadInfo{Exists: true, Size: fi.Size(), LastModified: fi.ModTime()}, nil
}

// Presign returns /vouchers/{key}?exp={unix}&sig={hmac}. The signature covers
// key and expiry, so neither can be swapped without invalidating the URL.
func (d *DiskStore) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := d.path(key); err != nil {
		return "", err
	}
	exp := d.now().Add(ttl).Unix()
	sig := d.sign(key, exp)
	return fmt.Sprintf("%s/vouchers/%s?exp=%d&sig=%s", d.baseURL, url.PathEscape(key), exp, sig), nil
}

// Verify checks a signature produced by Presign and that it has not expired.
func (d *DiskStore) Verify(key string, exp int64, sig string) bool {
	if d.now().Unix() > exp {
		return false
	}
	expected := d.sign(key, exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Open returns the blob file for serving. Caller closes.
func (d *DiskStore) Open(key string) (*os.File, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return f, nil
}

func (d *DiskStore) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(key + "\n" + strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *DiskStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", ErrNotFound
	}
	return filepath.Join(d.dir, key), nil
}
