package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartStore хранит корзину в JSON-файле. Запись идёт во временный файл
// рядом с целевым и заменяет его через rename, поэтому читатель видит
// либо старое, либо новое состояние целиком.
type CartStore struct {
	mu     sync.Mutex
	path   string
	logger *log.Entry
}

// NewCartStore создаёт хранилище; каталог создаётся при первой записи.
func NewCartStore(path string, logger *log.Entry) *CartStore {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &CartStore{
		path:   path,
		logger: logger.WithFields(log.Fields{"component": "cart-store", "driver": "file"}),
	}
}

// Path возвращает путь к файлу корзины.
func (s *CartStore) Path() string {
	return s.path
}

func (s *CartStore) Load(ctx context.Context) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("read cart file: %w", err)
	}

	cart, err := domain.DecodeCart(data)
	if err != nil {
		s.logger.WithError(err).WithField("path", s.path).Warn("discarding corrupt cart file")
		return domain.Cart{}, nil
	}
	return cart, nil
}

func (s *CartStore) Save(ctx context.Context, cart domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := domain.EncodeCart(cart)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cart-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cart file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cart file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp cart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cart file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace cart file: %w", err)
	}
	return nil
}

var _ domain.CartStore = (*CartStore)(nil)
