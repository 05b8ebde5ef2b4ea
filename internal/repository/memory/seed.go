package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Seed описывает внешние данные для запуска без базы: сессии и доступность исполнителей.
type Seed struct {
	Sessions []struct {
		Token  string        `yaml:"token"`
		UserID string        `yaml:"user_id"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"sessions"`
	Availability map[string][]string `yaml:"availability"`
}

// LoadSeed читает seed из yaml-файла.
func LoadSeed(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var seed Seed
	if err := yaml.NewDecoder(f).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed добавляет сессии и доступность из seed. Сессия без ttl живёт сутки.
func (s *Store) ApplySeed(seed *Seed) {
	now := time.Now()
	for _, sess := range seed.Sessions {
		ttl := sess.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		s.AddSession(sess.Token, sess.UserID, now.Add(ttl))
	}
	for categoryId, workers := range seed.Availability {
		for _, workerId := range workers {
			s.SetAvailable(categoryId, workerId, true)
		}
	}
}
