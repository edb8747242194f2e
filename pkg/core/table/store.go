package table

import "sync"

// Catalog - доступ к таблицам по имени. Шаги получают Catalog явным параметром.
type Catalog interface {
	Table(name string) (*Table, bool)
	Put(t *Table)
	Names() []string
}

// Store - хранилище таблиц сессии. Сохраняет порядок добавления.
// Таблица с тем же именем заменяет прежнюю.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*Table
	order  []string
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		tables: make(map[string]*Table),
	}
}

// Table возвращает таблицу по имени
func (s *Store) Table(name string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	return t, ok
}

// Put регистрирует таблицу под ее именем
func (s *Store) Put(t *Table) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[t.Name]; !exists {
		s.order = append(s.order, t.Name)
	}
	s.tables[t.Name] = t
}

// Names возвращает имена таблиц в порядке добавления
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Len возвращает количество таблиц
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot возвращает независимую копию хранилища
func (s *Store) Snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewStore()
	for _, name := range s.order {
		out.order = append(out.order, name)
		out.tables[name] = s.tables[name].Clone()
	}
	return out
}

// Reset удаляет все таблицы (завершение сессии)
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]*Table)
	s.order = nil
}
