package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore долговременное хранилище пары токенов.
// Load возвращает пустые Tokens без ошибки, если сессии нет.
type TokenStore interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	SaveAccess(ctx context.Context, accessToken string) error
	Clear(ctx context.Context) error
}

// MemoryStore хранит токены в памяти процесса
type MemoryStore struct {
	mu     sync.RWMutex
	tokens Tokens
}

// NewMemoryStore создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load возвращает текущие токены
func (s *MemoryStore) Load(ctx context.Context) (Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens, nil
}

// Save заменяет обе половины пары
func (s *MemoryStore) Save(ctx context.Context, tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	return nil
}

// SaveAccess заменяет только access токен
func (s *MemoryStore) SaveAccess(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.AccessToken = accessToken
	return nil
}

// Clear удаляет токены
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	return nil
}

// FileStore хранит токены в JSON файле с правами 0600
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore создает файловое хранилище в каталоге <home>/.fieldops
func NewFileStore(home string) (*FileStore, error) {
	dir := filepath.Join(home, ".fieldops")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, "tokens")}, nil
}

// Path возвращает путь к файлу токенов
func (s *FileStore) Path() string {
	return s.path
}

// Load читает токены из файла
func (s *FileStore) Load(ctx context.Context) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() (Tokens, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tokens{}, nil
		}
		return Tokens{}, fmt.Errorf("ошибка чтения файла токенов: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("ошибка десериализации токенов: %w", err)
	}
	return tokens, nil
}

// Save записывает пару токенов
func (s *FileStore) Save(ctx context.Context, tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(tokens)
}

// SaveAccess заменяет access токен, сохраняя refresh токен
func (s *FileStore) SaveAccess(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load()
	if err != nil {
		return err
	}
	tokens.AccessToken = accessToken
	return s.save(tokens)
}

// save пишет во временный файл и переименовывает, чтобы читатель не увидел половину записи
func (s *FileStore) save(tokens Tokens) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации токенов: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токенов: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ошибка сохранения токенов: %w", err)
	}
	return nil
}

// Clear удаляет файл токенов
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла токенов: %w", err)
	}
	return nil
}
