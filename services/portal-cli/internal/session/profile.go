package session

import "sync"

// ProfileCache снимок профиля пользователя на время сессии.
// Очищается при выходе и заполняется при входе.
type ProfileCache struct {
	mu   sync.RWMutex
	user *User
}

// Get возвращает копию профиля или nil
func (c *ProfileCache) Get() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Set сохраняет копию профиля
func (c *ProfileCache) Set(user *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if user == nil {
		c.user = nil
		return
	}
	u := *user
	c.user = &u
}

// Clear удаляет профиль
func (c *ProfileCache) Clear() {
	c.Set(nil)
}
