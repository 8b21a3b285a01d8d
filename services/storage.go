package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidObjectKey    = errors.New("invalid object key")
	ErrInvalidDownloadLink = errors.New("invalid or expired download link")
)

// ObjectStorage stores uploaded files under opaque keys.
type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds a unique key below prefix that keeps the file extension.
func ObjectKey(prefix, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join(prefix, uuid.NewString()+ext)
}

// LocalStorage keeps objects on the local filesystem below Root.
type LocalStorage struct {
	Root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStorage{Root: root}, nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidObjectKey
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	full, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return 0, err
	}
	f, err := os.Create(full)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return 0, err
	}
	return n, nil
}

func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type downloadClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

// URLSigner issues time-limited download links for stored objects.
type URLSigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	cache   *redis.Client
}

// NewURLSigner returns a signer. cache may be nil; when set, links are
// reused until shortly before they expire.
func NewURLSigner(secret, baseURL string, ttl time.Duration, cache *redis.Client) *URLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &URLSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		cache:   cache,
	}
}

// URL returns a signed download link for key.
func (s *URLSigner) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidObjectKey
	}
	cacheKey := "signed-url:" + key
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	now := time.Now()
	claims := downloadClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	link := s.baseURL + "/api/files/" + token

	if s.cache != nil {
		// Expire the cached link well before the token does.
		_ = s.cache.Set(ctx, cacheKey, link, s.ttl/2).Err()
	}
	return link, nil
}

// Verify returns the object key carried by a download token.
func (s *URLSigner) Verify(token string) (string, error) {
	claims := &downloadClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Key == "" {
		return "", ErrInvalidDownloadLink
	}
	return claims.Key, nil
}
