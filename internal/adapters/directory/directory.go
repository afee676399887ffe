package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dkeye/Multiview/internal/auth"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the directory database. Only the pure-Go sqlite driver is built in.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported directory driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}
	if err := db.AutoMigrate(&Category{}, &Team{}, &User{}); err != nil {
		return nil, fmt.Errorf("migrate directory: %w", err)
	}
	log.Info().Str("module", "directory").Str("driver", driver).Msg("directory ready")
	return db, nil
}

// Store resolves subjects against the users table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// LoadIdentity looks up the user by numeric id, with team and category.
func (s *Store) LoadIdentity(ctx context.Context, subject string) (domain.Identity, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("subject %q: %w", subject, auth.ErrSubjectNotFound)
	}

	var u User
	err = s.db.WithContext(ctx).Preload("Team.Category").First(&u, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Identity{}, fmt.Errorf("user %d: %w", id, auth.ErrSubjectNotFound)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load user %d: %w", id, err)
	}
	return toIdentity(u)
}

func toIdentity(u User) (domain.Identity, error) {
	identity, err := domain.NewIdentity(strconv.FormatUint(uint64(u.ID), 10), u.DisplayName, u.Email)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	identity.Privilege = domain.Privilege(u.Role)
	if u.Team != nil && u.Team.Category != nil {
		identity = identity.WithGroup(int64(u.Team.Category.ID), u.Team.Category.Name)
	}
	return identity, nil
}

// Users lists every user, ordered by id. Used by the seed command to mint tokens.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
